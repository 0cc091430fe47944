package wsprbeacon

// #cgo LDFLAGS: -lhamlib
// #include <stdlib.h>
// #include <hamlib/rig.h>
//
// // RIG_VFO_CURR and friends are macros with casts, which cgo won't take.
// static int wb_rig_set_conf(RIG *rig, const char *name, const char *val) {
// 	return rig_set_conf(rig, rig_token_lookup(rig, name), val);
// }
// static int wb_rig_set_freq(RIG *rig, double hz) {
// 	return rig_set_freq(rig, RIG_VFO_CURR, (freq_t)hz);
// }
// static int wb_rig_set_ptt(RIG *rig, int on) {
// 	return rig_set_ptt(rig, RIG_VFO_CURR, on ? RIG_PTT_ON : RIG_PTT_OFF);
// }
// static void wb_rig_quiet(void) {
// 	rig_set_debug(RIG_DEBUG_ERR);
// }
import "C"

import (
	"errors"
	"fmt"
	"strconv"
	"time"
	"unsafe"

	"github.com/charmbracelet/log"
)

var ErrHamlib = errors.New("hamlib")

// HamlibRig is a transceiver opened through libhamlib.  Not safe for
// concurrent use; the control loop is its only caller.
type HamlibRig struct {
	rig *C.RIG
}

func hamlibError(op string, rc C.int) error {
	return fmt.Errorf("%w: %s: %s", ErrHamlib, op, C.GoString(C.rigerror(rc)))
}

/*-------------------------------------------------------------------
 *
 * Name:        OpenHamlibRig
 *
 * Purpose:     Open a rig for CAT control.
 *
 * Inputs:	model	- Hamlib model number.  "rigctl --list" shows them.
 *
 *		port	- Serial device, or host:port for model 2 (rigctld).
 *
 *		speed	- Serial speed, 0 for the backend's default.
 *
 * Description:	Hamlib can take a moment after init before the rig answers,
 *		so the open is retried a few times.
 *
 *--------------------------------------------------------------------*/

func OpenHamlibRig(model int, port string, speed int, logger *log.Logger) (*HamlibRig, error) {
	logger = loggerOrDefault(logger)

	C.wb_rig_quiet()

	var rig = C.rig_init(C.rig_model_t(model))
	if rig == nil {
		return nil, fmt.Errorf("%w: unknown rig model %d, \"rigctl --list\" shows them", ErrHamlib, model)
	}

	var conf = [][2]string{{"rig_pathname", port}}
	if speed > 0 {
		conf = append(conf, [2]string{"serial_speed", strconv.Itoa(speed)})
	}

	for _, kv := range conf {
		var name = C.CString(kv[0])
		var val = C.CString(kv[1])
		var rc = C.wb_rig_set_conf(rig, name, val)
		C.free(unsafe.Pointer(name))
		C.free(unsafe.Pointer(val))

		if rc != C.RIG_OK {
			C.rig_cleanup(rig)
			return nil, hamlibError("set "+kv[0], rc)
		}
	}

	var rc C.int
	for tries := 1; ; tries++ {
		rc = C.rig_open(rig)
		if rc == C.RIG_OK || tries >= 3 {
			break
		}
		logger.Info("Retrying Hamlib rig open...", "model", model, "port", port)
		time.Sleep(2 * time.Second)
	}

	if rc != C.RIG_OK {
		C.rig_cleanup(rig)
		return nil, hamlibError("rig_open "+port, rc)
	}

	logger.Info("Hamlib rig opened.", "model", model, "port", port)

	return &HamlibRig{rig: rig}, nil
}

func (h *HamlibRig) SetFreq(hz float64) error {
	if rc := C.wb_rig_set_freq(h.rig, C.double(hz)); rc != C.RIG_OK {
		return hamlibError("rig_set_freq", rc)
	}

	return nil
}

func (h *HamlibRig) SetPTT(on bool) error {
	var v C.int
	if on {
		v = 1
	}

	if rc := C.wb_rig_set_ptt(h.rig, v); rc != C.RIG_OK {
		return hamlibError("rig_set_ptt", rc)
	}

	return nil
}

func (h *HamlibRig) Close() error {
	if h.rig == nil {
		return nil
	}

	var rc = C.rig_close(h.rig)
	C.rig_cleanup(h.rig)
	h.rig = nil

	if rc != C.RIG_OK {
		return hamlibError("rig_close", rc)
	}

	return nil
}

package wsprbeacon

/*------------------------------------------------------------------
 *
 * Purpose:   	The control loop.
 *
 * Description:	Everything the beacon context owns is touched from this
 *		goroutine only.  The GPS reader writes the time reference
 *		(which has its own lock) and the oscillator driver reads
 *		the transmit channel (which has its own handoff), so
 *		neither needs to reach in here.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

const DefaultTickInterval = time.Second

type RunOptions struct {
	Scheduler *Scheduler
	TimeRef   *TimeReference
	Clock     Clock // Must be the one the GPS reader stamps fixes with.

	// Zero means DefaultTickInterval.
	Tick time.Duration

	// New dial frequencies, e.g. from WatchConfig.  May be nil.
	DialUpdates <-chan uint32

	Logger *log.Logger

	// Called after every tick.
	OnTick func(TickResult)
}

/*-------------------------------------------------------------------
 *
 * Name:        Run
 *
 * Purpose:     Tick the scheduler until told to stop.
 *
 * Description:	Ticks come every opts.Tick, and also at a settle
 *		deadline so the symbols go out on time rather than up to
 *		a tick late.  The oscillator is stopped on the way out.
 *
 * Returns:	ctx.Err().
 *
 *--------------------------------------------------------------------*/

func Run(ctx context.Context, opts RunOptions) error {
	if opts.Scheduler == nil {
		panic("assert(opts.Scheduler != nil)")
	}
	if opts.TimeRef == nil {
		panic("assert(opts.TimeRef != nil)")
	}
	if opts.Clock == nil {
		panic("assert(opts.Clock != nil)")
	}

	var logger = loggerOrDefault(opts.Logger)
	var sched = opts.Scheduler
	var beacon = sched.Beacon()

	var interval = opts.Tick
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	defer beacon.Channel().Oscillator().Stop()

	// The rig is tuned when a slot is armed and the packet is stamped at
	// hand-off.  A new dial frequency waits out the settle so they agree.
	var pendingDial uint32
	var applyDial = func() {
		if pendingDial == 0 {
			return
		}
		if sched.State().Phase == Settling {
			logger.Debug("Dial frequency change held until hand-off.", "hz", pendingDial)
			return
		}

		// Takes effect with the next packet.
		beacon.SetDialFreq(pendingDial)
		logger.Info("Dial frequency set.", "hz", pendingDial)
		pendingDial = 0
	}

	var timer = time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Control loop stopping.")
			return ctx.Err()

		case freq := <-opts.DialUpdates:
			if freq <= MinDialFrequencyHz {
				logger.Warn("Ignoring dial frequency below minimum.", "hz", freq, "min_hz", MinDialFrequencyHz)
				continue
			}
			pendingDial = freq
			applyDial()

			continue

		case <-timer.C:
		}

		var res = sched.Tick(opts.Clock.Now(), opts.TimeRef.Read())
		applyDial()

		if opts.OnTick != nil {
			opts.OnTick(res)
		}

		var next = interval
		if d, ok := sched.SettlePending(opts.Clock.Now()); ok && d < next {
			next = d
		}

		timer.Reset(next)
	}
}

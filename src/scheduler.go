package wsprbeacon

/*------------------------------------------------------------------
 *
 * Purpose:   	Decide when to transmit.
 *
 * Description:	WSPR transmissions start at the beginning of even
 *		UTC minutes.  The only source of UTC is the GPS receiver,
 *		which may go quiet.  Between fixes, UTC is the time of the
 *		last fix plus the monotonic time elapsed since then.
 *
 *		The control loop calls Tick about once a second.  Slot
 *		boundaries are worked out from that estimated UTC rather
 *		than from counting ticks, so late or missed ticks do not
 *		move the schedule.
 *
 *		Phases:
 *
 *		AwaitingTimeRef	Nothing heard from the GPS receiver yet.
 *		StaleTimeRef	Heard, but the time is not usable.
 *		IdleSlot	Time is good, nothing on the air.
 *		Settling	Oscillator started, waiting for it to settle
 *				before handing over the symbols.
 *		Transmitting	Symbols handed over for this slot.
 *
 *---------------------------------------------------------------*/

import (
	"time"

	"github.com/charmbracelet/log"
)

const (
	SlotLength = 2 * time.Minute

	SlotsPerHour = int(time.Hour / SlotLength)

	// How long a lost fix may be extrapolated when the override is enabled.
	StaleFixOverrideWindow = 2 * time.Hour

	DefaultSettleDelay = 100 * time.Millisecond
)

type SchedulerPhase int

const (
	AwaitingTimeRef SchedulerPhase = iota
	StaleTimeRef
	IdleSlot
	Settling
	Transmitting
)

func (p SchedulerPhase) String() string {
	switch p {
	case AwaitingTimeRef:
		return "awaiting-time-ref"
	case StaleTimeRef:
		return "stale-time-ref"
	case IdleSlot:
		return "idle-slot"
	case Settling:
		return "settling"
	case Transmitting:
		return "transmitting"
	default:
		return "unknown"
	}
}

// Action is what a tick did to the outside world.
type Action int

const (
	ActionNone    Action = iota
	ActionArmed          // Packet created, oscillator started.
	ActionEmitted        // Packet handed to the transmit channel.
	ActionStopped        // Oscillator stopped while it was in use.
	ActionFailed         // Packet could not be created.  Slot skipped.
)

type ScheduleConfig struct {
	SlotSkip         int  // 1 = every slot, N = every Nth slot.
	StaleFixOverride bool // Keep going for a while after losing the fix.
}

// SchedulerState is everything the scheduler remembers between ticks.
type SchedulerState struct {
	// Set while the selected slot has already caused a transmission.
	// Cleared only when the slot is no longer selected.
	Latch bool

	Phase SchedulerPhase

	// Monotonic time at which a settling oscillator may be fed.
	SettleDeadline time.Duration
}

type TickResult struct {
	Phase         SchedulerPhase
	Valid         bool
	Age           time.Duration // Whole seconds since the last fix.
	EstimatedTime time.Time     // Zero unless Valid.
	Slot          int
	SlotSelected  bool
	Action        Action
}

// EmitEvent describes a packet just handed to the transmit channel.
type EmitEvent struct {
	Time       time.Time
	Slot       int
	Callsign   string
	Locator    string
	PowerDbm   int
	DialFreqHz uint32
}

type SchedulerOptions struct {
	// Delay between starting the oscillator and handing over the symbols.
	// Zero means DefaultSettleDelay; negative means hand over at once.
	SettleDelay time.Duration

	// Take the locator from the GPS position at the start of each slot.
	AutoLocator bool

	Logger *log.Logger

	// Identical status lines are repeated at most this often.  Zero prints
	// every tick.
	StatusRepeat time.Duration

	// Called after each handoff.
	OnEmit func(EmitEvent)
}

type Scheduler struct {
	beacon *Beacon
	config ScheduleConfig
	state  SchedulerState
	opts   SchedulerOptions
	logger *log.Logger
	status *statusReporter
}

func NewScheduler(b *Beacon, cfg ScheduleConfig, opts SchedulerOptions) *Scheduler {
	if b == nil {
		panic("assert(b != nil)")
	}

	if cfg.SlotSkip < 1 {
		cfg.SlotSkip = 1
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}

	var logger = loggerOrDefault(opts.Logger)

	return &Scheduler{
		beacon: b,
		config: cfg,
		opts:   opts,
		logger: logger,
		status: newStatusReporter(logger, opts.StatusRepeat),
	}
}

func (s *Scheduler) Config() ScheduleConfig {
	return s.config
}

func (s *Scheduler) State() SchedulerState {
	return s.state
}

func (s *Scheduler) Beacon() *Beacon {
	return s.beacon
}

// Reset returns to the initial state.  The oscillator is left alone.
func (s *Scheduler) Reset() {
	s.state = SchedulerState{}
	s.status.forget()
}

// SettlePending reports how long until a settling oscillator is due to be
// fed, so the loop can tick again at that moment rather than a second later.
func (s *Scheduler) SettlePending(now time.Duration) (time.Duration, bool) {
	if s.state.Phase != Settling {
		return 0, false
	}

	return max(s.state.SettleDeadline-now, 0), true
}

// FixAge is the time since the last fix, in whole seconds.
func FixAge(now time.Duration, fix FixSnapshot) time.Duration {
	var age = now - fix.LastUpdate
	if age < 0 {
		age = 0
	}

	return age.Truncate(time.Second)
}

// FixValid tells whether the time reference may be used for scheduling.
// The override needs at least one real fix to extrapolate from.
func FixValid(fix FixSnapshot, age time.Duration, cfg ScheduleConfig) bool {
	if fix.SolutionActive {
		return true
	}

	return cfg.StaleFixOverride && !fix.LastFixTime.IsZero() && age < StaleFixOverrideWindow
}

// EstimateTime extrapolates UTC linearly from the last fix.
func EstimateTime(fix FixSnapshot, age time.Duration) time.Time {
	return time.Unix(fix.LastFixTime.Unix()+int64(age/time.Second), 0).UTC()
}

// SlotIndex is the two minute slot within the hour, 0 to 29.
func SlotIndex(t time.Time) int {
	var secOfHour = t.Unix() % 3600
	if secOfHour < 0 {
		secOfHour += 3600
	}

	return int(secOfHour / int64(SlotLength/time.Second))
}

func SlotSelected(t time.Time, slotSkip int) bool {
	if slotSkip < 1 {
		slotSkip = 1
	}

	return SlotIndex(t)%slotSkip == 0
}

/*-------------------------------------------------------------------
 *
 * Name:        Tick
 *
 * Purpose:     Make the scheduling decision for this moment.
 *
 * Inputs:	now	- Monotonic clock, same base as fix.LastUpdate.
 *
 *		fix	- Copy of the time reference.
 *
 * Returns:	What was decided and done.
 *
 * Description:	At most one packet per selected slot: the latch is set
 *		on the rising edge and cleared only by a slot that is not
 *		selected.  Never sleeps; the settle wait is a phase.
 *
 *--------------------------------------------------------------------*/

func (s *Scheduler) Tick(now time.Duration, fix FixSnapshot) TickResult {
	var age = FixAge(now, fix)
	var res = TickResult{Age: age}

	s.logger.Debug("tick", "now", now, "sentences", fix.SentenceCount, "active", fix.SolutionActive,
		"override", s.config.StaleFixOverride, "age", age)

	if fix.SentenceCount == 0 {
		s.state.Phase = AwaitingTimeRef
		s.status.report(now, log.InfoLevel, "Waiting for GPS receiver...")

		res.Phase = s.state.Phase

		return res
	}

	if !FixValid(fix, age, s.config) {
		// Don't leave a carrier up on a schedule we can no longer trust.
		if s.state.Phase == Settling || s.state.Phase == Transmitting {
			res.Action = ActionStopped
		}
		s.beacon.tx.oscillator.Stop()
		s.state.Phase = StaleTimeRef
		s.status.report(now, log.WarnLevel, "GPS time is stale, not transmitting.", "age", age)

		res.Phase = s.state.Phase

		return res
	}

	var est = EstimateTime(fix, age)

	res.Valid = true
	res.EstimatedTime = est
	res.Slot = SlotIndex(est)
	res.SlotSelected = res.Slot%s.config.SlotSkip == 0

	switch {
	case res.SlotSelected && !s.state.Latch:
		s.state.Latch = true
		res.Action = s.arm(now, fix, est, res.Slot)

	case res.SlotSelected:
		if s.state.Phase == Settling && now >= s.state.SettleDeadline {
			res.Action = s.emit(now, est, res.Slot)
		} else if s.state.Phase != Settling && s.state.Phase != Transmitting {
			// Latched slot whose transmission was cut short.  Stay quiet until the next one.
			s.state.Phase = IdleSlot
		}

	default:
		if s.state.Phase == Settling || s.state.Phase == Transmitting {
			res.Action = ActionStopped
		}
		s.state.Latch = false
		s.beacon.tx.oscillator.Stop()
		s.state.Phase = IdleSlot
		s.status.report(now, log.InfoLevel, "NO transmission slot.", "slot", res.Slot, "utc", est.Format("15:04:05"))
	}

	res.Phase = s.state.Phase

	return res
}

// Rising edge of a selected slot.
func (s *Scheduler) arm(now time.Duration, fix FixSnapshot, est time.Time, slot int) Action {
	if s.opts.AutoLocator && fix.HasPosition {
		s.beacon.SetLocator(Maidenhead(fix.Position, 6))
	}

	if err := s.beacon.CreatePacket(); err != nil {
		s.state.Phase = IdleSlot
		s.status.report(now, log.ErrorLevel, "Can't create WSPR packet, skipping this slot.", "err", err)

		return ActionFailed
	}

	s.status.report(now, log.InfoLevel, "Start transmission.", "slot", slot, "utc", est.Format("15:04:05"),
		"dial_hz", s.beacon.tx.dialFreqHz)

	s.beacon.tx.oscillator.Start()

	if s.opts.SettleDelay < 0 {
		s.emit(now, est, slot)

		return ActionEmitted
	}

	s.state.Phase = Settling
	s.state.SettleDeadline = now + s.opts.SettleDelay

	return ActionArmed
}

func (s *Scheduler) emit(now time.Duration, est time.Time, slot int) Action {
	s.beacon.SendPacket()
	s.state.Phase = Transmitting

	s.status.report(now, log.InfoLevel, "Transmission handed off.", "symbols", WSPRSymbolCount,
		"cursor", s.beacon.tx.ixInput)

	if s.opts.OnEmit != nil {
		s.opts.OnEmit(EmitEvent{
			Time:       est,
			Slot:       slot,
			Callsign:   s.beacon.callsign,
			Locator:    s.beacon.locator,
			PowerDbm:   s.beacon.powerDbm,
			DialFreqHz: s.beacon.tx.dialFreqHz,
		})
	}

	return ActionEmitted
}

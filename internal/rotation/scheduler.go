package rotation

// Idle reasons reported in EffectIdle.
const (
	ReasonEmptySequence = "empty rotation sequence"
	ReasonNoneAvailable = "no mode in the rotation sequence is available"
)

// Start resets the rotation and enters the first sequence position.
// An empty sequence leaves the scheduler idle.
func Start(cfg Config) (State, []Effect) {
	return Transition(NewState(), Event{Type: EventStart, Config: cfg})
}

// Transition applies ev to s and returns the new state and the effects the
// caller must execute, in order. s is not modified.
func Transition(s State, ev Event) (State, []Effect) {
	m := &machine{s: s.clone()}

	switch ev.Type {
	case EventStart:
		m.start(ev.Config)
	case EventTimerFired:
		// Stale fires (cancelled or superseded timers) are dropped.
		if !m.s.TimerPending || ev.Seq != m.s.TimerSeq {
			return s, nil
		}
		m.s.TimerPending = false
		m.onUnitComplete()
	case EventRefresh:
		m.refresh(ev.Config)
	case EventAdvance:
		m.advance()
	}

	return m.s, m.effects
}

// machine accumulates effects for a single transition.
type machine struct {
	s       State
	effects []Effect
}

func (m *machine) emit(e Effect) {
	m.effects = append(m.effects, e)
}

func (m *machine) start(cfg Config) {
	m.cancelTimer()

	// TimerSeq survives a restart so fires from the previous run stay stale.
	seq := m.s.TimerSeq
	m.s = NewState()
	m.s.TimerSeq = seq
	m.s.Config = cfg

	if len(cfg.Sequence) == 0 {
		m.idle(ReasonEmptySequence)
		return
	}
	m.enter(0)
}

// enter moves to the first available sequence position at or after index.
// The scan is bounded by one pass over the sequence.
func (m *machine) enter(index int) {
	m.adoptPending()

	seq := m.s.Config.Sequence
	n := len(seq)
	if n == 0 {
		m.idle(ReasonEmptySequence)
		return
	}
	index = ((index % n) + n) % n

	for step := 0; step < n; step++ {
		i := (index + step) % n
		mode := seq[i]
		if !m.s.Config.Available(mode) {
			m.emit(Effect{Type: EffectSkip, Mode: mode})
			continue
		}
		m.s.SequenceIndex = i
		m.show(mode)
		return
	}

	m.s.SequenceIndex = index
	m.idle(ReasonNoneAvailable)
}

func (m *machine) show(mode Mode) {
	if mode != m.s.LastRendered {
		m.s.CycleCount[mode] = 0
	}
	m.emit(Effect{Type: EffectEnter, Mode: mode})
	if mode != m.s.LastRendered {
		m.emit(Effect{Type: EffectSelectTrack, Mode: mode})
	}

	m.s.CurrentMode = mode
	m.s.VisitUnits = m.s.Config.units(mode)
	m.renderUnit(0)
}

func (m *machine) renderUnit(unit int) {
	mode := m.s.CurrentMode
	m.s.Unit = unit
	m.s.LastRendered = mode

	m.cancelTimer()
	m.emit(Effect{
		Type:     EffectRender,
		Mode:     mode,
		Unit:     unit,
		Units:    m.s.VisitUnits,
		Cycle:    m.s.CycleCount[mode] + 1,
		Revision: m.s.Config.Revision,
	})

	d := m.s.Config.UnitDuration[mode]
	if d <= 0 {
		m.s.Phase = PhaseStatic
		return
	}
	m.s.Phase = PhaseShowing
	m.s.TimerSeq++
	m.s.TimerPending = true
	m.emit(Effect{Type: EffectScheduleTimer, Mode: mode, Delay: d, Seq: m.s.TimerSeq})
}

func (m *machine) onUnitComplete() {
	mode := m.s.CurrentMode

	if m.s.Unit+1 < m.s.VisitUnits {
		m.renderUnit(m.s.Unit + 1)
		return
	}

	m.s.CycleCount[mode]++

	// Pass boundary: a refreshed snapshot applies before the replay decision,
	// so new cycle counts take effect here and a mode whose content vanished
	// ends its visit.
	if m.s.Pending != nil {
		m.adoptPending()
		m.s.VisitUnits = m.s.Config.units(mode)
	}
	if m.s.Config.Available(mode) && m.s.CycleCount[mode] < m.s.Config.cycles(mode) {
		m.renderUnit(0)
		return
	}

	m.s.CycleCount[mode] = 0
	m.enter(m.s.SequenceIndex + 1)
}

func (m *machine) refresh(cfg Config) {
	m.s.Pending = &cfg

	switch m.s.Phase {
	case PhaseIdle:
		m.enter(m.s.SequenceIndex)
	case PhaseStatic:
		// No timed unit is in flight, so nothing would ever adopt the
		// snapshot. Re-evaluate only when the content actually changed.
		if cfg.Revision != m.s.Config.Revision {
			m.s.CycleCount[m.s.CurrentMode] = 0
			m.enter(m.s.SequenceIndex)
		}
	}
}

func (m *machine) advance() {
	switch m.s.Phase {
	case PhaseShowing, PhaseStatic:
		m.cancelTimer()
		m.s.CycleCount[m.s.CurrentMode] = 0
		m.enter(m.s.SequenceIndex + 1)
	}
}

func (m *machine) adoptPending() {
	if m.s.Pending == nil {
		return
	}
	m.s.Config = *m.s.Pending
	m.s.Pending = nil
}

func (m *machine) cancelTimer() {
	if !m.s.TimerPending {
		return
	}
	m.s.TimerPending = false
	m.emit(Effect{Type: EffectCancelTimer})
}

func (m *machine) idle(reason string) {
	m.cancelTimer()
	m.s.Phase = PhaseIdle
	m.s.CurrentMode = ""
	m.s.Unit = 0
	m.s.VisitUnits = 0
	m.emit(Effect{Type: EffectIdle, Reason: reason})
}

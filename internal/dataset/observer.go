package dataset

// Observer receives state-machine events. Implementations must be cheap;
// they run synchronously inside the dataset's entry points.
type Observer interface {
	TaskCommitted(kind TaskKind, className string)
	Undone()
	Redone()
	Replayed(steps int)
	ReconstructionFailed(kind TaskKind, className string)
}

type nopObserver struct{}

func (nopObserver) TaskCommitted(TaskKind, string)        {}
func (nopObserver) Undone()                               {}
func (nopObserver) Redone()                               {}
func (nopObserver) Replayed(int)                          {}
func (nopObserver) ReconstructionFailed(TaskKind, string) {}

// Observers fans events out to each non-nil observer in order.
func Observers(observers ...Observer) Observer {
	out := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

type multiObserver []Observer

func (m multiObserver) TaskCommitted(kind TaskKind, className string) {
	for _, o := range m {
		o.TaskCommitted(kind, className)
	}
}

func (m multiObserver) Undone() {
	for _, o := range m {
		o.Undone()
	}
}

func (m multiObserver) Redone() {
	for _, o := range m {
		o.Redone()
	}
}

func (m multiObserver) Replayed(steps int) {
	for _, o := range m {
		o.Replayed(steps)
	}
}

func (m multiObserver) ReconstructionFailed(kind TaskKind, className string) {
	for _, o := range m {
		o.ReconstructionFailed(kind, className)
	}
}

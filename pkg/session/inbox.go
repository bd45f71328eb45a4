package session

import (
	"sync"

	"tradeprobe/pkg/models"

	"github.com/gammazero/deque"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrUncorrelatedWait = errors.New("another uncorrelated wait is outstanding")
	errDuplicateWait    = errors.New("correlation id is already awaited")
)

// Inbox is the ordered queue between a session's dispatcher and its waiters.
// It also tracks which correlation ids and which uncorrelated kinds are being
// awaited, so a waiter leaves messages owned by another waiter in place.
type Inbox struct {
	mu     sync.Mutex
	q      *deque.Deque[models.Message]
	notify chan struct{}
	closed bool

	highWater int
	above     bool
	onDrop    func(models.Message)
	logger    *zap.Logger

	awaited   map[string]struct{}
	loose     models.KindSet
	looseWait bool
}

// NewInbox creates an inbox. highWater <= 0 means unbounded; otherwise the
// oldest background message is dropped when the queue grows past it.
func NewInbox(highWater int, logger *zap.Logger, onDrop func(models.Message)) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inbox{
		q:         deque.New[models.Message](),
		notify:    make(chan struct{}),
		highWater: highWater,
		onDrop:    onDrop,
		logger:    logger,
		awaited:   make(map[string]struct{}),
	}
}

// Push appends m in arrival order and wakes every waiter.
func (in *Inbox) Push(m models.Message) {
	var dropped models.Message

	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	in.q.PushBack(m)

	if in.highWater > 0 {
		if in.q.Len() > in.highWater {
			if i := in.q.Index(isBackground); i >= 0 {
				dropped = in.q.Remove(i)
			}
			if !in.above {
				in.above = true
				in.logger.Warn("inbox above high-water mark",
					zap.Int("len", in.q.Len()), zap.Int("high_water", in.highWater))
			}
		} else {
			in.above = false
		}
	}

	close(in.notify)
	in.notify = make(chan struct{})
	in.mu.Unlock()

	if dropped != nil && in.onDrop != nil {
		in.onDrop(dropped)
	}
}

// Close wakes every waiter; later pushes are ignored. Queued messages stay
// available to waiters.
func (in *Inbox) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return
	}
	in.closed = true
	close(in.notify)
}

func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.q.Len()
}

// register claims a wait. An empty id claims the single uncorrelated slot.
func (in *Inbox) register(id string, accept models.KindSet) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if id == "" {
		if in.looseWait {
			return ErrUncorrelatedWait
		}
		in.looseWait = true
		in.loose = accept
		return nil
	}
	if _, ok := in.awaited[id]; ok {
		return errors.Wrapf(errDuplicateWait, "clOrdID %q", id)
	}
	in.awaited[id] = struct{}{}
	return nil
}

func (in *Inbox) unregister(id string) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if id == "" {
		in.looseWait = false
		in.loose = 0
		return
	}
	delete(in.awaited, id)
}

func isBackground(m models.Message) bool {
	return m.Kind().Background()
}

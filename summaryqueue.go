package versequiz

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SummaryStatus tracks a generated summary through checking
type SummaryStatus string

const (
	SummaryTentative SummaryStatus = "tentative"
	SummaryAccepted  SummaryStatus = "accepted"
	SummaryRejected  SummaryStatus = "rejected"
	SummaryRevised   SummaryStatus = "revised"
)

// SummaryTask is one candidate summary for one chapter
type SummaryTask struct {
	ID            string        `json:"id"`
	Book          string        `json:"book"`
	Chapter       int           `json:"chapter"`
	Summary       string        `json:"summary"`
	Status        SummaryStatus `json:"status"`
	RevisionCount int           `json:"revision_count"`
	CreatedAt     time.Time     `json:"created_at"`
}

// NewSummaryTask creates a tentative task with a fresh id
func NewSummaryTask(book string, chapter int, summary string) *SummaryTask {
	return &SummaryTask{
		ID:      uuid.NewString(),
		Book:    book,
		Chapter: chapter,
		Summary: summary,
		Status:  SummaryTentative,
	}
}

// SummaryQueue is a FIFO of summaries waiting to be checked
type SummaryQueue struct {
	mu    sync.RWMutex
	tasks map[string]*SummaryTask
	queue []string
}

// NewSummaryQueue creates an empty queue
func NewSummaryQueue() *SummaryQueue {
	return &SummaryQueue{
		tasks: make(map[string]*SummaryTask),
		queue: make([]string, 0),
	}
}

// Add enqueues a task, marking it tentative
func (sq *SummaryQueue) Add(task *SummaryTask) {
	sq.mu.Lock()
	defer sq.mu.Unlock()

	if task.Status != SummaryRevised {
		task.Status = SummaryTentative
	}
	task.CreatedAt = time.Now()

	sq.tasks[task.ID] = task
	sq.queue = append(sq.queue, task.ID)
}

// Get dequeues the oldest task, or returns nil
func (sq *SummaryQueue) Get() *SummaryTask {
	sq.mu.Lock()
	defer sq.mu.Unlock()

	if len(sq.queue) == 0 {
		return nil
	}

	id := sq.queue[0]
	sq.queue = sq.queue[1:]

	task := sq.tasks[id]
	delete(sq.tasks, id)

	return task
}

// Remove drops a queued task
func (sq *SummaryQueue) Remove(id string) {
	sq.mu.Lock()
	defer sq.mu.Unlock()

	delete(sq.tasks, id)
	for i, qid := range sq.queue {
		if qid == id {
			sq.queue = append(sq.queue[:i], sq.queue[i+1:]...)
			break
		}
	}
}

// Size returns the number of queued tasks
func (sq *SummaryQueue) Size() int {
	sq.mu.RLock()
	defer sq.mu.RUnlock()
	return len(sq.queue)
}

// IsEmpty reports whether nothing is queued
func (sq *SummaryQueue) IsEmpty() bool {
	return sq.Size() == 0
}

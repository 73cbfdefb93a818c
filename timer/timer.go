// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Task is a deferred callback. Key identifies the owner (a room id for the
// goal-pause realignment) so pending tasks can be cancelled when the owner
// goes away.
type Task struct {
	ID       int64
	Key      string
	Execute  time.Time
	Interval time.Duration
	Callback func()
	index    int
}

type taskQueue []*Task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	return q[i].Execute.Before(q[j].Execute)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*Task)
	task.index = n
	*q = append(*q, task)
}

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	task.index = -1
	*q = old[0 : n-1]
	return task
}

type Manager struct {
	queue      taskQueue
	mutex      sync.Mutex
	nextID     int64
	trigger    chan *Task
	resolution time.Duration
}

func NewManager() *Manager {
	manager := &Manager{
		queue:      make(taskQueue, 0),
		trigger:    make(chan *Task, 1000),
		nextID:     1,
		resolution: 100 * time.Millisecond,
	}
	heap.Init(&manager.queue)
	go manager.process()
	return manager
}

// Schedule queues callback to run once after delay, or repeatedly every
// interval when interval > 0. It returns the task id.
func (m *Manager) Schedule(key string, delay, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task := &Task{
		ID:       m.nextID,
		Key:      key,
		Execute:  time.Now().Add(delay),
		Interval: interval,
		Callback: callback,
	}
	m.nextID++

	heap.Push(&m.queue, task)
	return task.ID
}

// Cancel removes a single pending task by id.
func (m *Manager) Cancel(taskID int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, task := range m.queue {
		if task.ID == taskID {
			heap.Remove(&m.queue, i)
			break
		}
	}
}

// CancelKey removes every pending task scheduled under key. Idempotent.
func (m *Manager) CancelKey(key string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i := 0; i < len(m.queue); {
		if m.queue[i].Key == key {
			heap.Remove(&m.queue, i)
			continue
		}
		i++
	}
}

func (m *Manager) process() {
	ticker := time.NewTicker(m.resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mutex.Lock()
			now := time.Now()

			for m.queue.Len() > 0 {
				task := m.queue[0]
				if task.Execute.After(now) {
					break
				}

				heap.Pop(&m.queue)
				m.trigger <- task

				if task.Interval > 0 {
					task.Execute = now.Add(task.Interval)
					heap.Push(&m.queue, task)
				}
			}
			m.mutex.Unlock()

		case task := <-m.trigger:
			go task.Callback()
		}
	}
}

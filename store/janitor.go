package store

import (
	"sync"
	"time"
)

// janitor calls run on a fixed interval until stopped.
type janitor struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func startJanitor(interval time.Duration, run func()) *janitor {
	j := &janitor{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(j.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				run()
			case <-j.stop:
				return
			}
		}
	}()
	return j
}

// Stop ends the loop and waits for a running pass to finish.
func (j *janitor) Stop() {
	j.once.Do(func() { close(j.stop) })
	<-j.done
}

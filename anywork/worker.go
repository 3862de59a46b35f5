package anywork

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/joshyorko/bomforge/common"
)

var (
	group     *WorkGroup
	pipeline  WorkQueue
	failpipe  Failures
	errcount  Counters
	headcount uint64
	scaling   sync.Mutex
)

type Work func()
type WorkQueue chan Work
type Failures chan string
type Counters chan uint64

// WorkGroup is a WaitGroup that work items report to once they finish,
// whether they returned or panicked.
type WorkGroup struct {
	sync.WaitGroup
}

func NewGroup() *WorkGroup {
	return &WorkGroup{}
}

func (it *WorkGroup) add() {
	it.Add(1)
}

func (it *WorkGroup) done() {
	it.Done()
}

func catcher(title string, identity uint64) {
	catch := recover()
	if catch != nil {
		failpipe <- fmt.Sprintf("Recovering %q #%d: %v", title, identity, catch)
	}
}

func process(fun Work, identity uint64) {
	defer group.done()
	defer catcher("process", identity)
	fun()
}

func member(identity uint64) {
	defer catcher("member", identity)
	for {
		work, ok := <-pipeline
		if !ok {
			break
		}
		process(work, identity)
	}
}

func watcher(failures Failures, counters Counters) {
	counter := uint64(0)
	for {
		select {
		case fail := <-failures:
			counter += 1
			common.Log("%s", fail)
		case counters <- counter:
			counter = 0
		}
	}
}

func init() {
	group = NewGroup()
	pipeline = make(WorkQueue, 1024)
	failpipe = make(Failures)
	errcount = make(Counters)
	headcount = 0
	AutoScale()
	go watcher(failpipe, errcount)
}

func Scale() uint64 {
	scaling.Lock()
	defer scaling.Unlock()
	return headcount
}

// AutoScale sizes the pool for I/O and subprocess bound work: scanners spend
// most of their time waiting on disk.
func AutoScale() {
	ScaleTo(runtime.NumCPU() + 1)
}

// ScaleTo grows the pool to at least limit members. Pools never shrink.
func ScaleTo(limit int) {
	scaling.Lock()
	defer scaling.Unlock()
	for headcount < uint64(limit) {
		go member(headcount)
		headcount += 1
	}
}

func Backlog(todo Work) {
	if todo != nil {
		group.add()
		pipeline <- todo
	}
}

// Sync waits until all backlogged work is done and reports how many work
// items panicked since the previous Sync.
func Sync() error {
	trials := int(Scale())
	for retries := 0; retries < trials; retries++ {
		runtime.Gosched()
	}
	group.Wait()
	count := <-errcount
	if count > 0 {
		return fmt.Errorf("There has been %d failures. See messages above.", count)
	}
	return nil
}

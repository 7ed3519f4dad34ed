package sim

import (
	"runtime"
	"sync"

	"github.com/pthm-cable/spray/canvas"
	"github.com/pthm-cable/spray/nozzle"
	"github.com/pthm-cable/spray/rng"
	"github.com/pthm-cable/spray/spray"
)

// parallelThreshold is the minimum slot count to use the worker pool.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// Emitter runs one kernel invocation for a slot. *spray.Kernel implements it.
type Emitter interface {
	Emit(state rng.State, pose nozzle.Pose) (spray.Deposit, rng.State)
}

// workChunk represents a range of slots for a worker to process.
type workChunk struct {
	id         int
	start, end int
	pose       nozzle.Pose
}

// chunkResult holds counters for one chunk. Each chunk owns its entry, so
// no counter is shared during a dispatch.
type chunkResult struct {
	deposited int
	discarded int
}

// dispatcher fans one frame's slots out over a persistent worker pool and
// blocks until every slot has finished.
type dispatcher struct {
	emitter Emitter
	streams *rng.Streams
	buffer  *canvas.Buffer

	numWorkers int
	results    []chunkResult

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

func newDispatcher(emitter Emitter, streams *rng.Streams, buffer *canvas.Buffer, workers int) *dispatcher {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &dispatcher{
		emitter:    emitter,
		streams:    streams,
		buffer:     buffer,
		numWorkers: workers,
		results:    make([]chunkResult, workers),
	}
}

// startWorkers launches persistent worker goroutines.
func (d *dispatcher) startWorkers() {
	if d.running {
		return
	}

	d.workChan = make(chan workChunk, d.numWorkers)
	d.doneChan = make(chan struct{}, d.numWorkers)
	d.stopChan = make(chan struct{})
	d.running = true

	for i := 0; i < d.numWorkers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (d *dispatcher) stopWorkers() {
	if !d.running {
		return
	}

	close(d.stopChan)
	d.wg.Wait()
	close(d.workChan)
	close(d.doneChan)
	d.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (d *dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopChan:
			return
		case chunk, ok := <-d.workChan:
			if !ok {
				return
			}
			d.results[chunk.id] = d.computeChunk(chunk.start, chunk.end, chunk.pose)
			d.doneChan <- struct{}{}
		}
	}
}

// dispatch runs every slot once against pose and returns the summed
// counters. When it returns, all buffer writes of this frame have landed.
func (d *dispatcher) dispatch(pose nozzle.Pose) chunkResult {
	n := d.streams.Len()
	if n < parallelThreshold || d.numWorkers == 1 {
		return d.computeChunk(0, n, pose)
	}

	// Ensure workers are running
	if !d.running {
		d.startWorkers()
	}

	chunkSize := (n + d.numWorkers - 1) / d.numWorkers

	chunksDispatched := 0
	for w := 0; w < d.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}

		d.workChan <- workChunk{id: chunksDispatched, start: start, end: end, pose: pose}
		chunksDispatched++
	}

	// Barrier: wait for all chunks to complete
	for i := 0; i < chunksDispatched; i++ {
		<-d.doneChan
	}

	var total chunkResult
	for _, r := range d.results[:chunksDispatched] {
		total.deposited += r.deposited
		total.discarded += r.discarded
	}
	return total
}

// computeChunk runs the kernel for slots [i0, i1). Slot i's state is only
// touched here, by whichever worker owns the chunk containing i.
func (d *dispatcher) computeChunk(i0, i1 int, pose nozzle.Pose) chunkResult {
	var r chunkResult
	for i := i0; i < i1; i++ {
		dep, next := d.emitter.Emit(d.streams.State(i), pose)
		d.streams.Store(i, next)

		if !dep.Hit {
			r.discarded++
			continue
		}
		d.buffer.Accumulate(dep.Index, dep.Intensity)
		r.deposited++
	}
	return r
}

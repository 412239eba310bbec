package convolve

import (
	"sync"
	"sync/atomic"
)

// Convolver performs real-time convolution against an impulse response
// of arbitrary length, parallelized across partitions by a ThreadPool.
// It implements Uniformly Partitioned FFT Convolution with a Frequency
// Delay Line (FDL): partition 0 is processed synchronously on the
// calling goroutine every block; partitions 1..P-1 are processed in the
// background and their contribution is folded in one block later.
type Convolver struct {
	plan *FFTPlan
	pool *ThreadPool

	subs []*FFTConvolver // one per partition, subs[p] owns ir[p]

	// delayLine holds exactly len(subs) cached spectra. After GetNext
	// rotates it, delayLine[i] (i=1..P-1) holds the spectrum consumed by
	// partition i's background contribution; delayLine[0] holds the
	// stalest entry, recycled in place as next call's fresh spectrum.
	// Rotation is done by moving slice headers, never by copying
	// complex data.
	delayLine [][]complex64

	acc        []complex64
	k          int // number of background workers = min(pool.NumThreads(), P-1)
	threadAccs [][]complex64
	sumMu      sync.Mutex
	futures    []*Future[struct{}]
	resetFlag  atomic.Bool

	tailCounter int
	eos         bool
	irLength    int
	m           int
}

// NewConvolver builds a Convolver for one channel's partitioned impulse
// response. irLength is the original (unpadded) impulse response length
// in samples, used to compute the final tail-drain block length.
func NewConvolver(ir []Partition, irLength int, pool *ThreadPool, plan *FFTPlan) (*Convolver, error) {
	p := len(ir)
	if p == 0 {
		return nil, ErrEmptyImpulseResponse
	}

	subs := make([]*FFTConvolver, p)
	for i, part := range ir {
		subs[i] = NewFFTConvolver(part, plan)
	}

	delayLine := make([][]complex64, p)
	for i := range delayLine {
		delayLine[i] = make([]complex64, plan.SpectrumSize())
	}

	k := pool.NumThreads()
	if k > p-1 {
		k = p - 1
	}

	threadAccs := make([][]complex64, k)
	for i := range threadAccs {
		threadAccs[i] = make([]complex64, plan.SpectrumSize())
	}

	return &Convolver{
		plan:        plan,
		pool:        pool,
		subs:        subs,
		delayLine:   delayLine,
		acc:         make([]complex64, plan.SpectrumSize()),
		k:           k,
		threadAccs:  threadAccs,
		futures:     make([]*Future[struct{}], k),
		irLength:    irLength,
		m:           plan.Size() / 2,
	}, nil
}

// NumPartitions returns P, the number of partitions in the impulse response.
func (cv *Convolver) NumPartitions() int { return len(cv.subs) }

// BlockSize returns M, the maximum number of samples accepted per call.
func (cv *Convolver) BlockSize() int { return cv.m }

// GetNext produces the next block of output. in may be nil to drain the
// reverberation tail once the upstream source has ended; otherwise
// len(in) must equal length. length must be <= BlockSize(). Once eos is
// reported, every subsequent call returns (0, true).
func (cv *Convolver) GetNext(in []float32, out []float32, length int) (produced int, eos bool) {
	if cv.eos {
		return 0, true
	}

	if length > cv.m {
		return 0, false
	}

	p := len(cv.subs)

	// 1. Await the previous round's background work; it wrote into acc
	// under sumMu and is guaranteed finished once Get returns.
	for i, f := range cv.futures {
		if f != nil {
			f.Get()
			cv.futures[i] = nil
		}
	}

	// 2. Partition 0, writing the fresh spectrum in place into the
	// current head. delayLine[0] still holds the spectrum from P
	// calls ago at this point; NextFDLIn overwrites it with this call's.
	if in != nil {
		if err := cv.subs[0].NextFDLIn(cv.plan, in, cv.acc, length, cv.delayLine[0]); err != nil {
			return 0, false
		}
	} else {
		cv.tailCounter++

		zero := out[:length]
		for i := range zero {
			zero[i] = 0
		}

		if err := cv.subs[0].NextFDLIn(cv.plan, zero, cv.acc, length, cv.delayLine[0]); err != nil {
			return 0, false
		}
	}

	// 3. Rotate the FDL: the untouched oldest slot moves to the front,
	// to be recycled as next call's head; everything else shifts back
	// by one, so delayLine[1] now holds the spectrum just written above.
	oldest := cv.delayLine[p-1]
	copy(cv.delayLine[1:], cv.delayLine[:p-1])
	cv.delayLine[0] = oldest

	// 4. IFFT & emit.
	if err := cv.subs[0].IFFTFDL(cv.plan, cv.acc, out, length); err != nil {
		return 0, false
	}

	for i := range cv.acc {
		cv.acc[i] = 0
	}

	produced = length

	// 5. EOS detection.
	if in == nil && cv.tailCounter >= p {
		cv.eos = true

		rem := cv.irLength % cv.m
		if rem == 0 {
			rem = cv.m
		}

		return rem, true
	}

	// 6. Dispatch background partitions 1..P-1 for the NEXT call.
	cv.resetFlag.Store(false)

	for id := range cv.k {
		id := id

		cv.futures[id] = Enqueue(cv.pool, func() struct{} {
			share := (p - 1 + cv.k - 1) / cv.k
			start := id*share + 1
			end := start + share
			if end > p {
				end = p
			}

			threadAcc := cv.threadAccs[id]
			for i := range threadAcc {
				threadAcc[i] = 0
			}

			for part := start; part < end; part++ {
				if cv.resetFlag.Load() {
					break
				}

				cv.subs[part].NextFDLAcc(cv.delayLine[part], threadAcc)
			}

			cv.sumMu.Lock()
			if !cv.resetFlag.Load() {
				for i := range cv.acc {
					cv.acc[i] += threadAcc[i]
				}
			}
			cv.sumMu.Unlock()

			return struct{}{}
		})
	}

	return produced, false
}

// Reset discards all in-flight background work and returns the
// convolver to its just-constructed state.
func (cv *Convolver) Reset() {
	cv.resetFlag.Store(true)

	for i, f := range cv.futures {
		if f != nil {
			f.Get()
			cv.futures[i] = nil
		}
	}

	for _, cell := range cv.delayLine {
		for i := range cell {
			cell[i] = 0
		}
	}

	for _, s := range cv.subs {
		s.Clear()
	}

	for i := range cv.acc {
		cv.acc[i] = 0
	}

	cv.tailCounter = 0
	cv.eos = false
	cv.resetFlag.Store(false)
}

// SetImpulseResponse resets the convolver and swaps in a new partition
// set. The new partition count and FFT plan size must match the
// existing ones exactly; mismatches are a programming error and are
// rejected rather than producing undefined output.
func (cv *Convolver) SetImpulseResponse(ir []Partition, irLength int) error {
	if len(ir) != len(cv.subs) {
		return ErrPlanMismatch
	}

	cv.Reset()

	for i, part := range ir {
		cv.subs[i].setPartition(part)
	}

	cv.irLength = irLength

	return nil
}

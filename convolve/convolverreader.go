package convolve

// ConvolverReader streams a multichannel source through one Convolver
// per channel. If the impulse response is mono, every channel shares
// its single channel; otherwise the impulse response's channel count
// must match the source's.
type ConvolverReader struct {
	source     Reader
	convolvers []*Convolver
	pool       *ThreadPool

	m          int
	inChannels int
	nWorkers   int

	position int64
	eosTail  bool

	scratch   [][]float32 // per-channel, length m
	outBuffer []float32   // interleaved, length m*inChannels
	outLen    int
	outPos    int
}

type channelResult struct {
	length int
	eos    bool
}

// NewConvolverReader builds a reader over source using ir, driven by
// pool and plan. It fails with a StateError-class sentinel if the
// channel counts or sample rates are incompatible, or if ir was built
// with a different FFT plan size.
func NewConvolverReader(source Reader, ir *ImpulseResponse, pool *ThreadPool, plan *FFTPlan) (*ConvolverReader, error) {
	specs := source.Specs()
	irSpecs := ir.Specs()

	if irSpecs.Channels != 1 && irSpecs.Channels != specs.Channels {
		return nil, ErrChannelMismatch
	}

	if specs.Rate != irSpecs.Rate {
		return nil, ErrRateMismatch
	}

	if plan.Size() != ir.Plan().Size() {
		return nil, ErrPlanMismatch
	}

	m := plan.Size() / 2

	convolvers := make([]*Convolver, specs.Channels)
	for c := range specs.Channels {
		channelIdx := c
		if irSpecs.Channels == 1 {
			channelIdx = 0
		}

		cv, err := NewConvolver(ir.Channel(channelIdx), ir.Length(), pool, plan)
		if err != nil {
			return nil, err
		}

		convolvers[c] = cv
	}

	scratch := make([][]float32, specs.Channels)
	for c := range scratch {
		scratch[c] = make([]float32, m)
	}

	nWorkers := pool.NumThreads()
	if nWorkers > specs.Channels {
		nWorkers = specs.Channels
	}

	r := &ConvolverReader{
		source:     source,
		convolvers: convolvers,
		pool:       pool,
		m:          m,
		inChannels: specs.Channels,
		nWorkers:   nWorkers,
		scratch:    scratch,
		outBuffer:  make([]float32, m*specs.Channels),
	}
	r.outPos = len(r.outBuffer)
	r.outLen = len(r.outBuffer)

	return r, nil
}

// Specs returns the source's specs unchanged: a ConvolverReader never
// changes the channel count.
func (r *ConvolverReader) Specs() Specs { return r.source.Specs() }

func (r *ConvolverReader) IsSeekable() bool { return r.source.IsSeekable() }

func (r *ConvolverReader) Length() int64 { return r.source.Length() }

func (r *ConvolverReader) Position() int64 { return r.position }

// Seek forwards to the source reader and resets every channel's
// Convolver; the output buffer is considered empty afterward.
func (r *ConvolverReader) Seek(position int64) error {
	if err := r.source.Seek(position); err != nil {
		return err
	}

	r.position = position

	for _, cv := range r.convolvers {
		cv.Reset()
	}

	r.eosTail = false
	r.outPos = len(r.outBuffer)
	r.outLen = len(r.outBuffer)

	return nil
}

// Read copies up to length frames into buffer, refilling the internal
// output buffer from the Convolvers as needed. eos is reported only
// once the source has ended, every Convolver has drained its tail, and
// the output buffer is fully consumed.
func (r *ConvolverReader) Read(buffer []float32, length int) (produced int, eos bool) {
	if length <= 0 {
		return 0, r.eosTail && r.outPos >= r.outLen
	}

	want := length * r.inChannels
	written := 0

	for written < want {
		if r.outPos >= r.outLen {
			if r.eosTail {
				break
			}

			r.loadBuffer()

			if r.outLen == 0 {
				break
			}
		}

		avail := r.outLen - r.outPos
		n := want - written
		if n > avail {
			n = avail
		}

		copy(buffer[written:written+n], r.outBuffer[r.outPos:r.outPos+n])
		r.outPos += n
		written += n
	}

	produced = written / r.inChannels
	r.position += int64(produced)

	return produced, r.eosTail && r.outPos >= r.outLen
}

func (r *ConvolverReader) loadBuffer() {
	interleaved := make([]float32, r.m*r.inChannels)

	n, srcEOS := r.source.Read(interleaved, r.m)

	hasInput := n > 0
	if hasInput {
		for c := range r.inChannels {
			for i := range n {
				r.scratch[c][i] = interleaved[i*r.inChannels+c]
			}
		}
	} else if r.eosTail {
		r.outLen = 0
		r.outPos = 0
		return
	}

	_ = srcEOS

	requested := r.m
	if hasInput {
		requested = n
	}

	produced := r.runConvolvers(requested, hasInput)
	r.interleave(produced)
	r.outLen = produced * r.inChannels
	r.outPos = 0
}

func (r *ConvolverReader) runConvolvers(requested int, hasInput bool) int {
	share := (r.inChannels + r.nWorkers - 1) / r.nWorkers

	futures := make([]*Future[channelResult], r.nWorkers)

	for id := range r.nWorkers {
		id := id

		futures[id] = Enqueue(r.pool, func() channelResult {
			start := id * share
			end := start + share
			if end > r.inChannels {
				end = r.inChannels
			}

			res := channelResult{length: requested}

			for c := start; c < end; c++ {
				var in []float32
				if hasInput {
					in = r.scratch[c][:requested]
				}

				n, eos := r.convolvers[c].GetNext(in, r.scratch[c], requested)
				res.length = n
				res.eos = res.eos || eos
			}

			return res
		})
	}

	produced := requested
	allEOS := true

	for _, f := range futures {
		res := f.Get()
		produced = res.length

		if !res.eos {
			allEOS = false
		}
	}

	if !hasInput && allEOS {
		r.eosTail = true
	}

	return produced
}

func (r *ConvolverReader) interleave(n int) {
	for i := range n {
		for c := range r.inChannels {
			r.outBuffer[i*r.inChannels+c] = r.scratch[c][i]
		}
	}
}

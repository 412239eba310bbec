package convolve

// ConvolverSound wraps a Sound so that every Reader it creates passes
// its samples through a Convolver per channel, driven by a shared
// ThreadPool and FFTPlan.
type ConvolverSound struct {
	source Sound
	ir     *ImpulseResponse
	pool   *ThreadPool
	plan   *FFTPlan
}

// NewConvolverSound binds source to ir using an FFT plan of the given
// size and a freshly built ThreadPool of workers goroutines. An
// fftSize <= 0 selects DefaultFFTSize.
func NewConvolverSound(source Sound, ir *ImpulseResponse, fftSize int, workers int) (*ConvolverSound, error) {
	plan, err := NewFFTPlan(fftSize, 0)
	if err != nil {
		return nil, err
	}

	pool, err := NewThreadPool(workers)
	if err != nil {
		return nil, err
	}

	return NewConvolverSoundWithPlan(source, ir, pool, plan)
}

// NewConvolverSoundWithPlan binds source to ir using an already-built
// pool and plan, allowing several Sounds to share one thread pool.
func NewConvolverSoundWithPlan(source Sound, ir *ImpulseResponse, pool *ThreadPool, plan *FFTPlan) (*ConvolverSound, error) {
	if plan.Size() != ir.Plan().Size() {
		return nil, ErrPlanMismatch
	}

	return &ConvolverSound{source: source, ir: ir, pool: pool, plan: plan}, nil
}

// CreateReader opens a fresh Reader on the underlying Sound and wraps
// it in a ConvolverReader.
func (s *ConvolverSound) CreateReader() (Reader, error) {
	reader, err := s.source.CreateReader()
	if err != nil {
		return nil, err
	}

	return NewConvolverReader(reader, s.ir, s.pool, s.plan)
}

// BinauralSound wraps a mono Sound so that every Reader it creates
// renders binaurally against an HRTF database, tracking a live Source
// position.
type BinauralSound struct {
	source Sound
	hrtf   *HRTF
	pos    *Source
	pool   *ThreadPool
	plan   *FFTPlan
}

// NewBinauralSound binds source to hrtf and pos using an FFT plan of
// the given size and a freshly built ThreadPool of workers goroutines.
func NewBinauralSound(source Sound, hrtf *HRTF, pos *Source, fftSize int, workers int) (*BinauralSound, error) {
	plan, err := NewFFTPlan(fftSize, 0)
	if err != nil {
		return nil, err
	}

	pool, err := NewThreadPool(workers)
	if err != nil {
		return nil, err
	}

	return NewBinauralSoundWithPlan(source, hrtf, pos, pool, plan)
}

// NewBinauralSoundWithPlan binds source to hrtf and pos using an
// already-built pool and plan.
func NewBinauralSoundWithPlan(source Sound, hrtf *HRTF, pos *Source, pool *ThreadPool, plan *FFTPlan) (*BinauralSound, error) {
	if plan.Size() != hrtf.plan.Size() {
		return nil, ErrPlanMismatch
	}

	return &BinauralSound{source: source, hrtf: hrtf, pos: pos, pool: pool, plan: plan}, nil
}

// CreateReader opens a fresh Reader on the underlying Sound and wraps
// it in a BinauralReader.
func (s *BinauralSound) CreateReader() (Reader, error) {
	reader, err := s.source.CreateReader()
	if err != nil {
		return nil, err
	}

	return NewBinauralReader(reader, s.hrtf, s.pos, s.pool, s.plan)
}

package amcodec

import (
	"errors"
	"sync"
)

// fakeSession records what the Decoder asks of the hardware.
type fakeSession struct {
	mu sync.Mutex

	openCalls  int
	openHints  StreamHints
	openErr    error
	closeCalls int
	closeErr   error
	destroyed  int
	destroyErr error

	decodes []fakeDecode
	status  Status

	picPTS   float64
	picW     int
	picH     int
	omxPts   int
	duration int
	index    uint32

	resets int
	speed  int
	drain  bool
}

type fakeDecode struct {
	data     []byte
	dts, pts float64
}

func newFakeSession() *fakeSession {
	return &fakeSession{status: StatusBuffer}
}

func (s *fakeSession) OpenDecoder(hints StreamHints) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openCalls++
	s.openHints = hints.Clone()
	return s.openErr
}

func (s *fakeSession) CloseDecoder() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return s.closeErr
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed++
	return s.destroyErr
}

func (s *fakeSession) Decode(data []byte, dts, pts float64) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decodes = append(s.decodes, fakeDecode{append([]byte(nil), data...), dts, pts})
	return s.status
}

func (s *fakeSession) GetPicture(pic *DecodedPicture) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pic.PTS = s.picPTS
	if s.picW > 0 {
		pic.Width, pic.Height = s.picW, s.picH
	}
	return true
}

func (s *fakeSession) Reset() {
	s.mu.Lock()
	s.resets++
	s.mu.Unlock()
}

func (s *fakeSession) SetSpeed(speed int) {
	s.mu.Lock()
	s.speed = speed
	s.mu.Unlock()
}

func (s *fakeSession) SetDrain(drain bool) {
	s.mu.Lock()
	s.drain = drain
	s.mu.Unlock()
}

func (s *fakeSession) OMXPts() int         { return s.omxPts }
func (s *fakeSession) Duration() int       { return s.duration }
func (s *fakeSession) BufferIndex() uint32 { return s.index }

func (s *fakeSession) decodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.decodes)
}

func (s *fakeSession) lastDecode() fakeDecode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.decodes) == 0 {
		return fakeDecode{}
	}
	return s.decodes[len(s.decodes)-1]
}

// sessionFactory hands out sessions and counts calls.
type sessionFactory struct {
	created  int
	sessions []*fakeSession
	err      error
}

func (f *sessionFactory) New() (Session, error) {
	f.created++
	if f.err != nil {
		return nil, f.err
	}
	s := newFakeSession()
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *sessionFactory) last() *fakeSession {
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

var errFakeCreate = errors.New("fake: no hardware")

// recordingProcessInfo captures the stream properties reported by Open.
type recordingProcessInfo struct {
	name      string
	hardware  bool
	width     int
	height    int
	deint     string
	dar       float64
	fps       float64
	fpsCalled int
}

func (p *recordingProcessInfo) SetVideoDecoderName(name string, hw bool) {
	p.name, p.hardware = name, hw
}
func (p *recordingProcessInfo) SetVideoDimensions(w, h int)  { p.width, p.height = w, h }
func (p *recordingProcessInfo) SetVideoDeintMethod(m string) { p.deint = m }
func (p *recordingProcessInfo) SetVideoDAR(a float64)        { p.dar = a }
func (p *recordingProcessInfo) SetVideoFPS(f float64) {
	p.fps = f
	p.fpsCalled++
}

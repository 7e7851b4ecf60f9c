package gallery

import (
	"context"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) InsertMemory(ctx context.Context, mem *Memory) error {
	args := m.Called(ctx, mem)
	return args.Error(0)
}

func (m *MockStore) ListMemories(ctx context.Context) ([]Memory, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Memory), args.Error(1)
}

func (m *MockStore) GetMemory(ctx context.Context, id string) (*Memory, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Memory), args.Error(1)
}

func (m *MockStore) DeleteMemory(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) InsertTrack(ctx context.Context, t *Track) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockStore) ListTracks(ctx context.Context) ([]Track, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Track), args.Error(1)
}

func (m *MockStore) GetTrack(ctx context.Context, id string) (*Track, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Track), args.Error(1)
}

func (m *MockStore) DeleteTrack(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockBlobs records uploaded bodies so tests can check what reached storage.
type MockBlobs struct {
	mock.Mock
	mu       sync.Mutex
	uploaded map[string][]byte
}

func (m *MockBlobs) Upload(ctx context.Context, bucket, name string, body io.Reader, contentType string) (string, error) {
	b, _ := io.ReadAll(body)
	m.mu.Lock()
	if m.uploaded == nil {
		m.uploaded = map[string][]byte{}
	}
	m.uploaded[bucket+"/"+name] = b
	m.mu.Unlock()

	args := m.Called(ctx, bucket, name, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockBlobs) Delete(ctx context.Context, bucket, name string) error {
	args := m.Called(ctx, bucket, name)
	return args.Error(0)
}

func (m *MockBlobs) PublicURL(bucket, name string) string {
	return "http://test/media/" + bucket + "/" + name
}

type published struct {
	Type    string
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Type: eventType, Payload: payload})
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

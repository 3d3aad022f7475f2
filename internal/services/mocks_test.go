package services

import (
	"context"
	"io"
	"sync"

	"github.com/yoockh/formdesk/internal/models"
	"github.com/yoockh/formdesk/internal/notify"
	pgrepo "github.com/yoockh/formdesk/internal/repositories/postgres"
)

// callLog records cross-collaborator call order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) record(name string) {
	l.mu.Lock()
	l.calls = append(l.calls, name)
	l.mu.Unlock()
}

func (l *callLog) All() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type createObjectCall struct {
	Name     string
	MimeType string
	Body     []byte
}

type objectStoreMock struct {
	log *callLog

	CreateObjectFunc    func(ctx context.Context, name, mimeType string, r io.Reader) (string, error)
	SetParentFunc       func(ctx context.Context, objectID, folderID string) (string, error)
	GrantPublicReadFunc func(ctx context.Context, objectID string) error
	DeleteObjectFunc    func(ctx context.Context, objectID string) error

	mu      sync.Mutex
	creates []createObjectCall
	parents [][2]string
	grants  []string
	deletes []string
}

func newObjectStoreMock(log *callLog) *objectStoreMock {
	return &objectStoreMock{log: log}
}

func (m *objectStoreMock) CreateObject(ctx context.Context, name, mimeType string, r io.Reader) (string, error) {
	m.log.record("store.CreateObject")
	body, _ := io.ReadAll(r)
	m.mu.Lock()
	m.creates = append(m.creates, createObjectCall{Name: name, MimeType: mimeType, Body: body})
	m.mu.Unlock()
	if m.CreateObjectFunc != nil {
		return m.CreateObjectFunc(ctx, name, mimeType, r)
	}
	return "obj-1", nil
}

func (m *objectStoreMock) SetParent(ctx context.Context, objectID, folderID string) (string, error) {
	m.log.record("store.SetParent")
	m.mu.Lock()
	m.parents = append(m.parents, [2]string{objectID, folderID})
	m.mu.Unlock()
	if m.SetParentFunc != nil {
		return m.SetParentFunc(ctx, objectID, folderID)
	}
	return objectID, nil
}

func (m *objectStoreMock) GrantPublicRead(ctx context.Context, objectID string) error {
	m.log.record("store.GrantPublicRead")
	m.mu.Lock()
	m.grants = append(m.grants, objectID)
	m.mu.Unlock()
	if m.GrantPublicReadFunc != nil {
		return m.GrantPublicReadFunc(ctx, objectID)
	}
	return nil
}

func (m *objectStoreMock) PublicURL(objectID string) string {
	return "https://files.example.com/" + objectID
}

func (m *objectStoreMock) DeleteObject(ctx context.Context, objectID string) error {
	m.log.record("store.DeleteObject")
	m.mu.Lock()
	m.deletes = append(m.deletes, objectID)
	m.mu.Unlock()
	if m.DeleteObjectFunc != nil {
		return m.DeleteObjectFunc(ctx, objectID)
	}
	return nil
}

func (m *objectStoreMock) CreateCalls() []createObjectCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]createObjectCall(nil), m.creates...)
}

func (m *objectStoreMock) SetParentCalls() [][2]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]string(nil), m.parents...)
}

func (m *objectStoreMock) DeleteCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletes...)
}

type notifierMock struct {
	log *callLog

	SendFunc func(ctx context.Context, msg notify.Message) error

	mu   sync.Mutex
	sent []notify.Message
}

func (m *notifierMock) Send(ctx context.Context, msg notify.Message) error {
	m.log.record("notifier.Send")
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	return nil
}

func (m *notifierMock) SendCalls() []notify.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Message(nil), m.sent...)
}

// recordingJobRepo wraps a real repository; InsertErr short-circuits the write.
type recordingJobRepo struct {
	pgrepo.JobApplicationRepository
	log       *callLog
	InsertErr error
}

func (r *recordingJobRepo) Insert(ctx context.Context, a *models.JobApplication) error {
	r.log.record("jobs.Insert")
	if r.InsertErr != nil {
		return r.InsertErr
	}
	return r.JobApplicationRepository.Insert(ctx, a)
}

type recordingComplaintRepo struct {
	pgrepo.ComplaintRepository
	log       *callLog
	InsertErr error
}

func (r *recordingComplaintRepo) Insert(ctx context.Context, c *models.Complaint) error {
	r.log.record("complaints.Insert")
	if r.InsertErr != nil {
		return r.InsertErr
	}
	return r.ComplaintRepository.Insert(ctx, c)
}

// jobRepoMock is a fully in-memory stand-in for report tests.
type jobRepoMock struct {
	ListAllFunc func(ctx context.Context) ([]models.JobApplication, error)
}

func (m *jobRepoMock) Insert(context.Context, *models.JobApplication) error { return nil }

func (m *jobRepoMock) ListAll(ctx context.Context) ([]models.JobApplication, error) {
	return m.ListAllFunc(ctx)
}

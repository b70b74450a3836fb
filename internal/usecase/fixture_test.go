package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"visaconnect/internal/adapter/repository/memory"
	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
	"visaconnect/internal/domain/service"
	"visaconnect/internal/infrastructure/lock"
	"visaconnect/internal/infrastructure/payment"
	"visaconnect/pkg/money"
)

var (
	client   = Actor{ID: "client-1", Role: entity.RoleClient}
	agent    = Actor{ID: "agent-1", Role: entity.RoleAgent}
	admin    = Actor{ID: "admin-1", Role: entity.RoleAdmin}
	stranger = Actor{ID: "client-2", Role: entity.RoleClient}
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []service.Notice
}

func (r *recordingNotifier) Notify(ctx context.Context, notice service.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
}

func (r *recordingNotifier) events(recipientID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notices {
		if n.RecipientID == recipientID {
			out = append(out, n.Event)
		}
	}
	return out
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) UploadFile(ctx context.Context, file io.Reader, filename, contentType, folder string) (*service.UploadedFile, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	name := fmt.Sprintf("private/%s/%d-%s", folder, len(s.objects), filename)
	s.objects[name] = data
	return &service.UploadedFile{
		URL:        "https://storage.example.com/" + name,
		ObjectName: name,
		Size:       int64(len(data)),
	}, nil
}

func (s *fakeStorage) DeleteFile(ctx context.Context, fileURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, fileURL)
	return nil
}

func (s *fakeStorage) Close() error { return nil }

// failingLedger refuses every transaction.
type failingLedger struct {
	err error
}

func (l failingLedger) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.LedgerTx) error) error {
	return l.err
}

// stepClock advances a minute on every call so set-once timestamps can be
// told apart.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

type fixture struct {
	store     *memory.Store
	gateway   *payment.SandboxGateway
	notifier  *recordingNotifier
	storage   *fakeStorage
	escrows   *EscrowUseCase
	cases     *CaseUseCase
	proposals *ProposalUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	gateway := payment.NewSandboxGateway()
	notifier := &recordingNotifier{}
	storage := newFakeStorage()
	locker := lock.NewLocalLocker()
	clock := &stepClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}

	escrows := NewEscrowUseCase(store.Ledger(), store.Escrows(), store.Proposals(), store.VisaRequests(),
		gateway, locker, notifier, DefaultFeeConfig())
	escrows.now = clock.Now
	cases := NewCaseUseCase(store.Ledger(), store.Cases(), store.FileMetadata(), storage, locker, notifier)
	cases.now = clock.Now

	return &fixture{
		store:     store,
		gateway:   gateway,
		notifier:  notifier,
		storage:   storage,
		escrows:   escrows,
		cases:     cases,
		proposals: NewProposalUseCase(store.Proposals(), store.VisaRequests(), locker, notifier),
	}
}

// seedProposal stores an open visa request of client-1 and a pending proposal
// of agent-1 with one milestone per amount.
func (f *fixture) seedProposal(t *testing.T, amounts ...float64) *entity.Proposal {
	t.Helper()
	ctx := context.Background()

	request := &entity.VisaRequest{
		ClientID:           client.ID,
		Title:              "Schengen tourist visa",
		VisaType:           "tourist",
		DestinationCountry: "FR",
		Status:             entity.VisaRequestStatusOpen,
	}
	require.NoError(t, f.store.VisaRequests().Create(ctx, request))

	proposal := &entity.Proposal{
		VisaRequestID: request.ID,
		ClientID:      client.ID,
		AgentID:       agent.ID,
		Currency:      "IDR",
		EstimatedDays: 30,
		Status:        entity.ProposalStatusPending,
	}
	var total []float64
	for i, amount := range amounts {
		proposal.Milestones = append(proposal.Milestones, entity.ProposalMilestone{
			Title:       fmt.Sprintf("Step %d", i+1),
			Description: fmt.Sprintf("Deliverable %d", i+1),
			Amount:      amount,
			DueInDays:   10,
		})
		total = append(total, amount)
	}
	proposal.TotalAmount = money.Sum(total...)
	require.NoError(t, f.store.Proposals().Create(ctx, proposal))
	return proposal
}

// fund seeds a proposal and funds it for the sum of amounts.
func (f *fixture) fund(t *testing.T, amounts ...float64) (*entity.Escrow, *entity.Case) {
	t.Helper()
	proposal := f.seedProposal(t, amounts...)

	escrow, err := f.escrows.Fund(context.Background(), client, FundEscrowInput{
		ProposalID:    proposal.ID,
		Amount:        proposal.TotalAmount,
		PaymentMethod: "bank_transfer",
	})
	require.NoError(t, err)

	c, err := f.store.Cases().GetByID(context.Background(), escrow.CaseID)
	require.NoError(t, err)
	f.notifier.reset()
	return escrow, c
}

func (f *fixture) reloadEscrow(t *testing.T, id string) *entity.Escrow {
	t.Helper()
	e, err := f.store.Escrows().GetByID(context.Background(), id)
	require.NoError(t, err)
	return e
}

func (f *fixture) reloadCase(t *testing.T, id string) *entity.Case {
	t.Helper()
	c, err := f.store.Cases().GetByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

// finishMilestone has the agent finish case milestone i.
func (f *fixture) finishMilestone(t *testing.T, caseID string, i int) {
	t.Helper()
	_, err := f.cases.UpdateMilestone(context.Background(), agent, caseID, i, UpdateMilestoneInput{
		Status: entity.MilestoneStatusCompleted,
	})
	require.NoError(t, err)
}

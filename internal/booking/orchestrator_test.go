package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sproutcare/telehealth-platform/internal/appointments"
	"github.com/sproutcare/telehealth-platform/internal/identity"
	"github.com/sproutcare/telehealth-platform/internal/slots"
)

// fakeSlotHolder emulates the store's compare-and-swap under a mutex so
// concurrent Hold calls race exactly like rows in the database.
type fakeSlotHolder struct {
	mu       sync.Mutex
	slot     slots.Slot
	released []uuid.UUID
}

func newFakeSlotHolder(slot slots.Slot) *fakeSlotHolder {
	return &fakeSlotHolder{slot: slot}
}

func (f *fakeSlotHolder) Hold(ctx context.Context, slotID, holderID uuid.UUID, ttl time.Duration) (*slots.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.slot.ID != slotID {
		return nil, slots.ErrSlotNotFound
	}
	now := time.Now().UTC()
	if !f.slot.EffectivelyAvailable(now) {
		return nil, slots.ErrSlotUnavailable
	}
	deadline := now.Add(ttl)
	f.slot.Available = false
	f.slot.HolderID = &holderID
	f.slot.HeldUntil = &deadline
	copied := f.slot
	return &copied, nil
}

func (f *fakeSlotHolder) Release(ctx context.Context, slotID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, slotID)
	f.slot.Available = true
	f.slot.HolderID = nil
	f.slot.HeldUntil = nil
	return nil
}

type fakeProfiles struct {
	doctor   identity.DoctorProfile
	guardian identity.GuardianProfile
	child    identity.ChildProfile
	childErr error
}

func (f *fakeProfiles) GetDoctor(ctx context.Context, id uuid.UUID) (*identity.DoctorProfile, error) {
	d := f.doctor
	return &d, nil
}

func (f *fakeProfiles) GetGuardian(ctx context.Context, id uuid.UUID) (*identity.GuardianProfile, error) {
	g := f.guardian
	return &g, nil
}

func (f *fakeProfiles) GetChild(ctx context.Context, guardianID, childID uuid.UUID) (*identity.ChildProfile, error) {
	if f.childErr != nil {
		return nil, f.childErr
	}
	c := f.child
	return &c, nil
}

type fakeAppointments struct {
	mu        sync.Mutex
	created   []*appointments.Appointment
	createErr error
}

func (f *fakeAppointments) Create(ctx context.Context, appt *appointments.Appointment) (*appointments.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	appt.ID = uuid.New()
	f.created = append(f.created, appt)
	return appt, nil
}

func fixtures() (slots.Slot, *fakeProfiles) {
	doctorID := uuid.New()
	guardianID := uuid.New()
	childID := uuid.New()
	slot := slots.Slot{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		StartTime: time.Now().UTC().Add(48 * time.Hour),
		EndTime:   time.Now().UTC().Add(48*time.Hour + 30*time.Minute),
		Available: true,
	}
	profiles := &fakeProfiles{
		doctor:   identity.DoctorProfile{ID: doctorID, FullName: "Dr. Asha Rao", AvatarURL: "https://cdn.sproutcare.app/avatars/asha.png"},
		guardian: identity.GuardianProfile{ID: guardianID, FullName: "Priya Kumar", Phone: "+919800000001"},
		child:    identity.ChildProfile{ID: childID, GuardianID: guardianID, FullName: "Aarav Kumar", DateOfBirth: time.Date(2021, 6, 14, 0, 0, 0, 0, time.UTC)},
	}
	return slot, profiles
}

func validRequest(slot slots.Slot, profiles *fakeProfiles) BookRequest {
	return BookRequest{
		GuardianID:     profiles.guardian.ID,
		ChildID:        profiles.child.ID,
		DoctorID:       profiles.doctor.ID,
		SlotID:         slot.ID,
		ChiefComplaint: "persistent cough",
	}
}

func TestBookCreatesPendingPaymentWithSnapshot(t *testing.T) {
	slot, profiles := fixtures()
	holder := newFakeSlotHolder(slot)
	appts := &fakeAppointments{}
	orch := NewOrchestrator(holder, profiles, appts, 10*time.Minute, nil)

	appt, err := orch.Book(context.Background(), validRequest(slot, profiles))
	require.NoError(t, err)

	assert.Equal(t, appointments.StatusPendingPayment, appt.Status)
	assert.Equal(t, slot.StartTime, appt.ScheduledAt)
	assert.Equal(t, "Dr. Asha Rao", appt.DoctorName)
	assert.Equal(t, "Priya Kumar", appt.GuardianName)
	assert.Equal(t, "+919800000001", appt.GuardianPhone)
	assert.Equal(t, "Aarav Kumar", appt.ChildName)
	assert.Empty(t, holder.released)
}

func TestBookValidatesSelections(t *testing.T) {
	slot, profiles := fixtures()
	holder := newFakeSlotHolder(slot)
	orch := NewOrchestrator(holder, profiles, &fakeAppointments{}, 10*time.Minute, nil)

	req := validRequest(slot, profiles)
	req.ChildID = uuid.Nil

	_, err := orch.Book(context.Background(), req)
	assert.ErrorIs(t, err, ErrMissingSelection)
	// Validation failures never reach the slot store.
	assert.True(t, holder.slot.Available)
}

func TestConcurrentBookingsOnlyOneWins(t *testing.T) {
	slot, profiles := fixtures()
	holder := newFakeSlotHolder(slot)
	appts := &fakeAppointments{}
	orch := NewOrchestrator(holder, profiles, appts, 10*time.Minute, nil)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := validRequest(slot, profiles)
			req.GuardianID = profiles.guardian.ID
			_, errs[i] = orch.Book(context.Background(), req)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, slots.ErrSlotUnavailable)
		}
	}
	assert.Equal(t, 1, winners, "exactly one concurrent booking may win the slot")
	assert.Len(t, appts.created, 1)
}

func TestBookReleasesHoldWhenSnapshotFails(t *testing.T) {
	slot, profiles := fixtures()
	profiles.childErr = identity.ErrProfileNotFound
	holder := newFakeSlotHolder(slot)
	orch := NewOrchestrator(holder, profiles, &fakeAppointments{}, 10*time.Minute, nil)

	_, err := orch.Book(context.Background(), validRequest(slot, profiles))
	assert.ErrorIs(t, err, identity.ErrProfileNotFound)
	assert.Equal(t, []uuid.UUID{slot.ID}, holder.released)
	assert.True(t, holder.slot.Available, "slot must not stay stuck in held")
}

func TestBookReleasesHoldWhenInsertFails(t *testing.T) {
	slot, profiles := fixtures()
	holder := newFakeSlotHolder(slot)
	appts := &fakeAppointments{createErr: assert.AnError}
	orch := NewOrchestrator(holder, profiles, appts, 10*time.Minute, nil)

	_, err := orch.Book(context.Background(), validRequest(slot, profiles))
	require.Error(t, err)
	assert.Equal(t, []uuid.UUID{slot.ID}, holder.released)
}

func TestBookSlotUnavailableIsNotRetried(t *testing.T) {
	slot, profiles := fixtures()
	slot.Available = false
	activeHold := time.Now().UTC().Add(5 * time.Minute)
	other := uuid.New()
	slot.HolderID = &other
	slot.HeldUntil = &activeHold

	holder := newFakeSlotHolder(slot)
	appts := &fakeAppointments{}
	orch := NewOrchestrator(holder, profiles, appts, 10*time.Minute, nil)

	_, err := orch.Book(context.Background(), validRequest(slot, profiles))
	assert.ErrorIs(t, err, slots.ErrSlotUnavailable)
	assert.Empty(t, appts.created)
	assert.Empty(t, holder.released, "a failed hold has nothing to release")
}

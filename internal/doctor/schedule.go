// Package doctor manages a doctor's weekly availability and consult status.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/lumeskin-platform/internal/audit"
	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

var ErrUnknownDay = errors.New("doctor: unknown schedule day")

// Day is one weekday row of the schedule.
type Day struct {
	Day    string `json:"day"`
	Hours  string `json:"time"`
	Active bool   `json:"active"`
}

// Schedule is persisted per doctor. Online marks the doctor available for
// consult calls and is independent of the weekly rows.
type Schedule struct {
	DoctorID  string    `json:"doctorId"`
	Days      []Day     `json:"days"`
	Online    bool      `json:"online"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// DefaultDays is the schedule a doctor starts with.
func DefaultDays() []Day {
	return []Day{
		{Day: "Monday", Hours: "09:00 AM - 05:00 PM", Active: true},
		{Day: "Tuesday", Hours: "09:00 AM - 05:00 PM", Active: true},
		{Day: "Wednesday", Hours: "10:00 AM - 04:00 PM", Active: true},
		{Day: "Thursday", Hours: "09:00 AM - 05:00 PM", Active: true},
		{Day: "Friday", Hours: "09:00 AM - 02:00 PM", Active: true},
	}
}

// DocumentStore is the document API of the store.
type DocumentStore interface {
	LoadDocument(ctx context.Context, name string, v any) (bool, error)
	SaveDocument(ctx context.Context, name string, v any) error
}

type Service struct {
	docs    DocumentStore
	auditor audit.Recorder
	logger  *logging.Logger
	now     func() time.Time

	mu sync.Mutex
}

func NewService(docs DocumentStore, auditor audit.Recorder, logger *logging.Logger) *Service {
	if docs == nil {
		panic("doctor: document store cannot be nil")
	}
	if auditor == nil {
		auditor = audit.Nop{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{docs: docs, auditor: auditor, logger: logger, now: time.Now}
}

func documentName(doctorID string) string {
	return "doctor_schedule:" + doctorID
}

// Schedule returns the stored schedule, or the defaults for a doctor who
// never changed it.
func (s *Service) Schedule(ctx context.Context, doctorID string) (Schedule, error) {
	sched := Schedule{DoctorID: doctorID}
	found, err := s.docs.LoadDocument(ctx, documentName(doctorID), &sched)
	if err != nil {
		return Schedule{}, fmt.Errorf("doctor: load schedule %s: %w", doctorID, err)
	}
	if !found || len(sched.Days) == 0 {
		sched.Days = DefaultDays()
	}
	return sched, nil
}

// ToggleDay flips a weekday between online and offline. day matches the
// weekday name case-insensitively or its three-letter abbreviation.
func (s *Service) ToggleDay(ctx context.Context, actor models.User, day string) (Schedule, error) {
	return s.mutate(ctx, actor, func(sched *Schedule) (map[string]any, error) {
		idx := dayIndex(sched.Days, day)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDay, day)
		}
		sched.Days[idx].Active = !sched.Days[idx].Active
		return map[string]any{"day": sched.Days[idx].Day, "active": sched.Days[idx].Active}, nil
	})
}

// SetOnline sets the consult availability flag.
func (s *Service) SetOnline(ctx context.Context, actor models.User, online bool) (Schedule, error) {
	return s.mutate(ctx, actor, func(sched *Schedule) (map[string]any, error) {
		sched.Online = online
		return map[string]any{"online": online}, nil
	})
}

func (s *Service) mutate(ctx context.Context, actor models.User, fn func(*Schedule) (map[string]any, error)) (Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, err := s.Schedule(ctx, actor.ID)
	if err != nil {
		return Schedule{}, err
	}
	details, err := fn(&sched)
	if err != nil {
		return Schedule{}, err
	}
	sched.UpdatedAt = s.now().UTC()
	if err := s.docs.SaveDocument(ctx, documentName(actor.ID), sched); err != nil {
		return Schedule{}, fmt.Errorf("doctor: save schedule %s: %w", actor.ID, err)
	}
	if err := s.auditor.Record(ctx, audit.NewEvent(audit.ActionScheduleChanged, actor, actor.ID, details)); err != nil {
		s.logger.Warn("audit record failed", "error", err, "doctor_id", actor.ID)
	}
	return sched, nil
}

func dayIndex(days []Day, day string) int {
	day = strings.TrimSpace(day)
	for i, d := range days {
		if strings.EqualFold(d.Day, day) || (len(day) == 3 && strings.EqualFold(d.Day[:3], day)) {
			return i
		}
	}
	return -1
}

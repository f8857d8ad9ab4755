package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"interviewcoach/internal/domain"
	"interviewcoach/internal/ports"
)

type fakeArtifacts struct {
	mu    sync.Mutex
	saved []ports.SessionArtifact
	err   error
}

func (f *fakeArtifacts) Save(_ context.Context, artifact ports.SessionArtifact) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, artifact)
	return "/tmp/interview-session-" + artifact.SessionID + ".json", nil
}

func (f *fakeArtifacts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type fakeReports struct {
	mu          sync.Mutex
	artifacts   *fakeArtifacts
	savedAtCall int
	requests    []ports.ReportRequest
	err         error
	block       bool
}

func (f *fakeReports) Generate(ctx context.Context, req ports.ReportRequest) (domain.Report, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	if f.artifacts != nil {
		f.savedAtCall = f.artifacts.count()
	}
	block := f.block
	err := f.err
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return domain.Report{}, ctx.Err()
	}
	if err != nil {
		return domain.Report{}, err
	}
	return domain.Report{OverallScore: 80, Summary: "solid", Role: req.Role}, nil
}

func TestSessionFinalizerSavesArtifactBeforeReport(t *testing.T) {
	t.Parallel()

	artifacts := &fakeArtifacts{}
	reports := &fakeReports{artifacts: artifacts}
	events := &fakeEventSink{}
	f := newSessionFinalizer(artifacts, reports, events, time.Second, nil)

	artifact := ports.SessionArtifact{SessionID: "abc", Role: "Backend Engineer", Answers: []domain.AnswerRecord{{QuestionID: 1}}}
	result, reason := f.Finalize(context.Background(), artifact, domain.AdvanceResult{Finished: true})

	if reason != domain.SessionReasonReportReady {
		t.Fatalf("unexpected reason: %s", reason)
	}
	if reports.savedAtCall != 1 {
		t.Fatalf("expected artifact saved before report call")
	}
	if result.Report == nil || result.Report.Role != "Backend Engineer" {
		t.Fatalf("unexpected report: %+v", result.Report)
	}
	if result.ArtifactPath == "" || result.Warning != "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(events.artifacts) != 1 || len(events.reports) != 1 {
		t.Fatalf("expected artifact and report events")
	}
}

func TestSessionFinalizerReportFailureIsWarning(t *testing.T) {
	t.Parallel()

	artifacts := &fakeArtifacts{}
	events := &fakeEventSink{}
	f := newSessionFinalizer(artifacts, &fakeReports{err: errors.New("quota")}, events, time.Second, nil)

	result, reason := f.Finalize(context.Background(), ports.SessionArtifact{SessionID: "abc"}, domain.AdvanceResult{})
	if reason != domain.SessionReasonReportFailed {
		t.Fatalf("unexpected reason: %s", reason)
	}
	if result.Report != nil || result.Warning == "" {
		t.Fatalf("expected warning without report: %+v", result)
	}
	if result.ArtifactPath == "" {
		t.Fatalf("expected artifact path despite report failure")
	}
	if !events.hasError(domain.ErrorCodeReport) {
		t.Fatalf("expected report error event")
	}
}

func TestSessionFinalizerReportTimeout(t *testing.T) {
	t.Parallel()

	f := newSessionFinalizer(&fakeArtifacts{}, &fakeReports{block: true}, &fakeEventSink{}, 10*time.Millisecond, nil)

	_, reason := f.Finalize(context.Background(), ports.SessionArtifact{}, domain.AdvanceResult{})
	if reason != domain.SessionReasonReportFailed {
		t.Fatalf("unexpected reason: %s", reason)
	}
}

func TestSessionFinalizerArtifactFailureStillRequestsReport(t *testing.T) {
	t.Parallel()

	artifacts := &fakeArtifacts{err: errors.New("disk full")}
	reports := &fakeReports{}
	events := &fakeEventSink{}
	f := newSessionFinalizer(artifacts, reports, events, time.Second, nil)

	result, reason := f.Finalize(context.Background(), ports.SessionArtifact{}, domain.AdvanceResult{})
	if reason != domain.SessionReasonReportReady {
		t.Fatalf("unexpected reason: %s", reason)
	}
	if result.Warning == "" || result.ArtifactPath != "" {
		t.Fatalf("expected artifact warning: %+v", result)
	}
	if !events.hasError(domain.ErrorCodeArtifact) {
		t.Fatalf("expected artifact error event")
	}
}

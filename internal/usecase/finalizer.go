package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"interviewcoach/internal/domain"
	"interviewcoach/internal/logging"
	"interviewcoach/internal/ports"
)

type sessionFinalizer struct {
	artifacts     ports.ArtifactWriter
	reports       ports.ReportGenerator
	events        ports.EventSink
	reportTimeout time.Duration
	log           *logrus.Entry
}

func newSessionFinalizer(artifacts ports.ArtifactWriter, reports ports.ReportGenerator, events ports.EventSink, reportTimeout time.Duration, log *logrus.Entry) sessionFinalizer {
	return sessionFinalizer{artifacts: artifacts, reports: reports, events: events, reportTimeout: reportTimeout, log: logging.OrDiscard(log)}
}

// Finalize saves the artifact and then asks for the report. The artifact is
// written first so answers survive a failed report call.
func (f sessionFinalizer) Finalize(ctx context.Context, artifact ports.SessionArtifact, result domain.AdvanceResult) (domain.AdvanceResult, domain.SessionStateReason) {
	var warnings []string

	path, err := f.artifacts.Save(ctx, artifact)
	if err != nil {
		f.log.WithError(err).Error("session artifact not saved")
		f.events.SessionError(domain.ErrorCodeArtifact, "session transcript could not be saved: "+err.Error())
		warnings = append(warnings, "session transcript could not be saved")
	} else {
		result.ArtifactPath = path
		f.log.WithField("path", path).Info("session artifact saved")
		f.events.ArtifactSaved(path)
	}

	reportCtx, cancel := context.WithTimeout(ctx, f.reportTimeout)
	defer cancel()
	report, err := f.reports.Generate(reportCtx, ports.ReportRequest{
		Answers: artifact.Answers,
		Final:   artifact.Final,
		Role:    artifact.Role,
	})
	if err != nil {
		f.log.WithError(err).Warn("report generation failed")
		f.events.SessionError(domain.ErrorCodeReport, "performance report unavailable: "+err.Error())
		warnings = append(warnings, "performance report unavailable")
		result.Warning = strings.Join(warnings, "; ")
		return result, domain.SessionReasonReportFailed
	}

	result.Report = &report
	result.Warning = strings.Join(warnings, "; ")
	f.events.ReportReady(report)
	return result, domain.SessionReasonReportReady
}

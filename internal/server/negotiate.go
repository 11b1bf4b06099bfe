package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/talentmatch/internal/negotiation"
	"github.com/mohammad-safakhou/talentmatch/internal/store"
	"github.com/mohammad-safakhou/talentmatch/provider"
)

type NegotiationsHandler struct {
	Resumes ResumeStore
	Jobs    JobStore
	Gateway provider.Gateway
	Opts    negotiation.Options
}

func (h *NegotiationsHandler) Register(g *echo.Group) {
	g.POST("/:resume_id/:jd_id/stream", h.stream)
}

// stream runs one negotiation between the candidate agent for resume_id and
// the recruiting agent for jd_id, streaming progress as SSE. The transcript
// lives only for the duration of the request.
func (h *NegotiationsHandler) stream(c echo.Context) error {
	ctx := c.Request().Context()

	resume, err := h.Resumes.GetResume(ctx, c.Param("resume_id"))
	if errors.Is(err, store.ErrResumeNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	job, err := h.Jobs.GetJob(ctx, c.Param("jd_id"))
	if errors.Is(err, store.ErrJobNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}

	// Each side gets its own document in full and the counterpart's in the
	// desensitized view only.
	candidateBrief := negotiation.Brief{
		Resume:  renderResume(resume),
		JD:      renderJob(job.Desensitized()),
		Profile: resume.Summary,
	}
	recruiterBrief := negotiation.Brief{
		Resume:  renderResume(resume.Desensitized()),
		JD:      renderJob(job),
		Profile: job.Description,
	}

	sink, err := newSSESink(c)
	if err != nil {
		return err
	}

	ledger := negotiation.NewLedger(uuid.NewString())
	eng := negotiation.NewEngine(h.Gateway, ledger, candidateBrief, recruiterBrief, h.Opts)
	if _, err := eng.Run(ctx, sink); err != nil {
		// Most commonly the client disconnected; the engine has already
		// cleaned up its transcript.
		c.Logger().Infof("negotiation ended early: %v", err)
	}
	return nil
}

func renderResume(r store.ResumeRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", r.Name)
	if r.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", r.Email)
	}
	if r.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", r.Phone)
	}
	fmt.Fprintf(&b, "Skills: %s\n", strings.Join(r.Skills, ", "))
	fmt.Fprintf(&b, "Experience: %s\n", r.Experience)
	fmt.Fprintf(&b, "Education: %s\n", r.Education)
	fmt.Fprintf(&b, "Summary: %s\n", r.Summary)
	return b.String()
}

func renderJob(j store.JobRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", j.Title)
	fmt.Fprintf(&b, "Company: %s\n", j.Company)
	fmt.Fprintf(&b, "Location: %s\n", j.Location)
	if j.SalaryRange != "" {
		fmt.Fprintf(&b, "Salary: %s\n", j.SalaryRange)
	}
	fmt.Fprintf(&b, "Requirements: %s\n", strings.Join(j.Requirements, ", "))
	fmt.Fprintf(&b, "Description: %s\n", j.Description)
	if j.Benefits != "" {
		fmt.Fprintf(&b, "Benefits: %s\n", j.Benefits)
	}
	return b.String()
}

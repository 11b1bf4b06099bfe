package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mohammad-safakhou/talentmatch/internal/store"
)

// ResumeGetter is the slice of the store the resume lookup needs.
type ResumeGetter interface {
	GetResume(ctx context.Context, id string) (store.ResumeRecord, error)
}

// JobGetter is the slice of the store the job lookup needs.
type JobGetter interface {
	GetJob(ctx context.Context, id string) (store.JobRecord, error)
}

// ResumeLookup fetches one stored resume by id.
type ResumeLookup struct {
	Store ResumeGetter
}

func (ResumeLookup) Name() string { return "lookup_resume" }

func (t ResumeLookup) Invoke(ctx context.Context, params map[string]interface{}) (string, error) {
	id, _ := params["id"].(string)
	if id == "" {
		return "", errors.New("lookup_resume requires an id parameter")
	}
	rec, err := t.Store.GetResume(ctx, id)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(rec)
	return string(b), err
}

// JobLookup fetches one stored job description by id.
type JobLookup struct {
	Store JobGetter
}

func (JobLookup) Name() string { return "lookup_jd" }

func (t JobLookup) Invoke(ctx context.Context, params map[string]interface{}) (string, error) {
	id, _ := params["id"].(string)
	if id == "" {
		return "", errors.New("lookup_jd requires an id parameter")
	}
	rec, err := t.Store.GetJob(ctx, id)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(rec)
	return string(b), err
}

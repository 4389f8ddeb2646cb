package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	types "github.com/introvirght/engagement-backend/internal/domain"
	"github.com/introvirght/engagement-backend/internal/platform/ctxutil"
)

/*
Context is the execution handle for one claimed job run.
Handlers read their input through it and never touch the job_run row directly;
the worker owns every status transition.
*/
type Context struct {
	Ctx context.Context
	Job *types.JobRun

	payload map[string]any
	result  map[string]any
}

func NewContext(ctx context.Context, job *types.JobRun) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	c := &Context{Ctx: ctx, Job: job}
	_ = c.decodePayload()
	c.applyTraceData()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

func (c *Context) applyTraceData() {
	traceID := c.PayloadString("trace_id")
	reqID := c.PayloadString("request_id")
	if traceID == "" && reqID == "" {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{TraceID: traceID, RequestID: reqID})
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadString(key string) string {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// DecodePayload unmarshals the raw payload into v. A malformed payload is permanent.
func (c *Context) DecodePayload(v any) error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return Permanent(errors.New("job payload is empty"))
	}
	if err := json.Unmarshal(c.Job.Payload, v); err != nil {
		return Permanent(fmt.Errorf("decode job payload: %w", err))
	}
	return nil
}

// SetResult records a value stored on the job row when it succeeds.
func (c *Context) SetResult(key string, value any) {
	if c.result == nil {
		c.result = map[string]any{}
	}
	c.result[key] = value
}

func (c *Context) Result() map[string]any {
	return c.result
}

// PermanentError marks failures that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	if e == nil || e.Err == nil {
		return "permanent job failure"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

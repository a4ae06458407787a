// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianShield/services/firewall/audit"
	"github.com/AleutianAI/AleutianShield/services/firewall/capability"
	"github.com/AleutianAI/AleutianShield/services/firewall/classifier"
	"github.com/AleutianAI/AleutianShield/services/firewall/datatypes"
	"github.com/AleutianAI/AleutianShield/services/firewall/observability"
	"github.com/AleutianAI/AleutianShield/services/firewall/verify"
)

var tracer = otel.Tracer("aleutian.shield.pipeline")

// nodeState enumerates the machine's states in graph order.
type nodeState int

const (
	stateClassify nodeState = iota
	stateMitigate
	statePassThrough
	stateBlock
	stateGenerate
	stateFastPath
	stateFullVerify
	stateAudit
	stateDone
)

func (n nodeState) String() string {
	switch n {
	case stateClassify:
		return "classify"
	case stateMitigate:
		return "mitigate"
	case statePassThrough:
		return "passthrough"
	case stateBlock:
		return "block"
	case stateGenerate:
		return "generate"
	case stateFastPath:
		return "fast_path"
	case stateFullVerify:
		return "full_verify"
	case stateAudit:
		return "audit"
	default:
		return "done"
	}
}

// Verifier runs the full verification stage. Satisfied by
// *verify.Coordinator.
type Verifier interface {
	Verify(ctx context.Context, prompt, response string, onSearch func(datatypes.SearchResults)) datatypes.VerificationResult
}

var _ Verifier = (*verify.Coordinator)(nil)

// Pipeline is the firewall's orchestration state machine.
//
// # Description
//
// Runs nodes sequentially; the only internal concurrency lives inside
// the verification coordinator. State is mutated exclusively by the
// invocation's own goroutine; capabilities return values, they never
// touch State.
//
// # Thread Safety
//
// Safe for concurrent use: each Invoke owns its State, and the shared
// collaborators (judgment cache, audit gate) serialize internally.
type Pipeline struct {
	classifier *classifier.Classifier
	detector   *classifier.AttackDetector
	mitigator  capability.Mitigator
	generator  capability.Generator
	verifier   Verifier
	gate       *audit.Gate

	blockThreshold float64
	fastThreshold  float64
	log            *slog.Logger
}

// NewPipeline assembles the state machine from its collaborators.
func NewPipeline(
	cls *classifier.Classifier,
	detector *classifier.AttackDetector,
	mitigator capability.Mitigator,
	generator capability.Generator,
	verifier Verifier,
	gate *audit.Gate,
	cfg datatypes.Config,
	log *slog.Logger,
) (*Pipeline, error) {
	if cls == nil || detector == nil || mitigator == nil || generator == nil || verifier == nil || gate == nil {
		return nil, errors.New("all pipeline collaborators must be non-nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		classifier:     cls,
		detector:       detector,
		mitigator:      mitigator,
		generator:      generator,
		verifier:       verifier,
		gate:           gate,
		blockThreshold: cfg.BlockThreshold,
		fastThreshold:  cfg.FastPathThreshold,
		log:            log,
	}, nil
}

// Invoke runs one prompt through the firewall.
//
// # Description
//
// Returns a channel of stage events, one per completed node, terminating
// in an event with Final=true carrying the full state snapshot. A
// non-empty preSuppliedResponse switches the run into verification-only
// mode: the generator is skipped and the supplied response is verified
// instead.
//
// The channel is closed when the run ends. Events carry state snapshots,
// never live references; consumers may retain them freely.
func (p *Pipeline) Invoke(ctx context.Context, userPrompt, preSuppliedResponse string) <-chan datatypes.StageEvent {
	events := make(chan datatypes.StageEvent, 16)
	go func() {
		defer close(events)
		p.run(ctx, userPrompt, preSuppliedResponse, events)
	}()
	return events
}

// run drives the machine from Classify to Done.
func (p *Pipeline) run(ctx context.Context, userPrompt, preSuppliedResponse string, events chan<- datatypes.StageEvent) {
	ctx, span := tracer.Start(ctx, "pipeline.invoke")
	defer span.End()

	state := datatypes.State{
		RequestID:   uuid.NewString(),
		UserPrompt:  userPrompt,
		LLMResponse: preSuppliedResponse,
	}
	span.SetAttributes(
		attribute.String("request.id", state.RequestID),
		attribute.Bool("verification_only", preSuppliedResponse != ""),
	)
	p.log.Info("pipeline run started",
		"request_id", state.RequestID,
		"verification_only", preSuppliedResponse != "")

	node := stateClassify
	for node != stateDone {
		select {
		case <-ctx.Done():
			span.SetStatus(codes.Error, "context cancelled")
			emit(events, "", &state, true, ctx.Err())
			return
		default:
		}

		current := node
		stageStart := time.Now()
		switch node {
		case stateClassify:
			judgment := p.classifier.Classify(ctx, state.UserPrompt)
			state.MergeJudgment(judgment)
			if len(state.AttackDetection.Categories) == 0 {
				// The classifier's fail-safe fallback carries no attack
				// report; the detector fills it in.
				state.AttackDetection = p.detector.Detect(ctx, state.UserPrompt)
			}
			emit(events, datatypes.StageAnalysis, &state, false, nil)
			switch RouteAfterClassify(state.Classification, state.RiskScore, p.blockThreshold) {
			case RouteBlock:
				node = stateBlock
			case RouteMitigate:
				node = stateMitigate
			default:
				node = statePassThrough
			}

		case stateMitigate:
			sanitized, err := p.mitigator.Rewrite(ctx, state.UserPrompt)
			if err != nil {
				// Fail closed: the unsanitized prompt must not reach
				// generation.
				span.SetStatus(codes.Error, "mitigation failed")
				p.log.Error("mitigation failed, aborting run",
					"request_id", state.RequestID, "error", err)
				emit(events, datatypes.StageRewrite, &state, true, err)
				return
			}
			state.FinalPrompt = sanitized
			emit(events, datatypes.StageRewrite, &state, false, nil)
			node = stateGenerate

		case statePassThrough:
			state.FinalPrompt = state.UserPrompt
			emit(events, datatypes.StagePassthrough, &state, false, nil)
			node = stateGenerate

		case stateBlock:
			state.FinalPrompt = datatypes.BlockedPrompt
			state.LLMResponse = datatypes.BlockedResponse
			state.Verdict = datatypes.VerdictRejected
			emit(events, datatypes.StageBlock, &state, false, nil)
			node = stateAudit

		case stateGenerate:
			if state.LLMResponse == "" {
				response, err := p.generator.Generate(ctx, state.FinalPrompt)
				if err != nil {
					span.SetStatus(codes.Error, "generation failed")
					p.log.Error("generation failed, aborting run",
						"request_id", state.RequestID, "error", err)
					emit(events, datatypes.StageLLM, &state, true, err)
					return
				}
				state.LLMResponse = response
			}
			emit(events, datatypes.StageLLM, &state, false, nil)
			if RouteAfterGenerate(state.RiskScore, p.fastThreshold) == RouteFastPath {
				node = stateFastPath
			} else {
				node = stateFullVerify
			}

		case stateFastPath:
			state.Verdict = datatypes.VerdictFastVerified
			state.CodeVerdict = datatypes.CodeVerdictSkipped
			emit(events, datatypes.StageFast, &state, false, nil)
			node = stateAudit

		case stateFullVerify:
			result := p.verifier.Verify(ctx, state.FinalPrompt, state.LLMResponse,
				func(sr datatypes.SearchResults) { state.WebSearchResults = &sr })
			state.MergeVerification(result)
			emit(events, datatypes.StageVerify, &state, false, nil)
			node = stateAudit

		case stateAudit:
			state.AuditFlag = audit.ShouldRecord(state.Classification, state.Verdict)
			if state.AuditFlag {
				p.gate.Submit(state.Snapshot())
			}
			emit(events, datatypes.StageAudit, &state, true, nil)
			node = stateDone
		}

		elapsed := time.Since(stageStart)
		observability.StageDuration.WithLabelValues(current.String()).Observe(elapsed.Seconds())
		span.AddEvent("stage_complete", trace.WithAttributes(
			attribute.String("stage", current.String()),
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
		))
	}

	span.SetAttributes(
		attribute.String("classification", string(state.Classification)),
		attribute.String("verdict", string(state.Verdict)),
		attribute.Bool("audited", state.AuditFlag),
	)
	p.log.Info("pipeline run finished",
		"request_id", state.RequestID,
		"classification", state.Classification,
		"verdict", state.Verdict,
		"audited", state.AuditFlag)
}

// emit sends one stage event carrying a state snapshot.
func emit(events chan<- datatypes.StageEvent, stage string, state *datatypes.State, final bool, err error) {
	event := datatypes.StageEvent{
		Stage:     stage,
		Timestamp: time.Now().UTC(),
		State:     state.Snapshot(),
		Final:     final,
	}
	if err != nil {
		event.Err = err.Error()
	}
	events <- event
}

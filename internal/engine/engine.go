// Package engine implements the fraud decision pipeline: deterministic
// feature extraction, scoring and classification feed a policy layer
// that consults the judgment oracle, enforces the decision matrix, and
// commits the outcome to the ledger, the audit store, and the event bus.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/docket/internal/bus"
	"github.com/Veraticus/docket/internal/common"
	"github.com/Veraticus/docket/internal/feature"
	"github.com/Veraticus/docket/internal/fraudtype"
	"github.com/Veraticus/docket/internal/model"
	"github.com/Veraticus/docket/internal/oracle"
	"github.com/Veraticus/docket/internal/risk"
	"github.com/Veraticus/docket/internal/service"
)

// featureImportanceTop is how many ranked features the analysis bundle
// carries.
const featureImportanceTop = 5

// Engine runs one document analysis end to end.
type Engine struct {
	extractor  Extractor
	scorer     Scorer
	adjuster   Adjuster
	classifier TypeClassifier
	oracle     oracle.Client
	ledger     service.Ledger
	detector   service.DuplicateDetector
	store      service.DecisionStore
	publisher  service.Publisher
	now        func() time.Time
	config     Config
}

// Deps bundles the engine's collaborators. Oracle, Scorer, Ledger,
// Detector and Store are required; the remaining deterministic stages
// default to the real implementations and Publisher defaults to a
// no-op.
type Deps struct {
	Extractor  Extractor
	Scorer     Scorer
	Adjuster   Adjuster
	Classifier TypeClassifier
	Oracle     oracle.Client
	Ledger     service.Ledger
	Detector   service.DuplicateDetector
	Store      service.DecisionStore
	Publisher  service.Publisher
}

// Config holds the decision-matrix policy knobs.
type Config struct {
	// MatrixModeByType overrides MatrixMode per document type.
	MatrixModeByType map[model.DocumentType]MatrixMode
	// MatrixMode is the global handling for matrix disagreements.
	MatrixMode MatrixMode
	// ApproveBelow is the clean-history threshold under which the matrix
	// expects APPROVE.
	ApproveBelow float64
	// RejectAt is the clean-history threshold at and above which the
	// matrix expects REJECT.
	RejectAt float64
	// EscalateCounts makes prior escalations gate repeat-offender
	// status, not just prior rejections.
	EscalateCounts bool
}

// DefaultConfig returns the default policy configuration.
func DefaultConfig() Config {
	return Config{
		ApproveBelow: 0.30,
		RejectAt:     0.85,
		MatrixMode:   MatrixModeLog,
	}
}

// New creates an engine with the default policy configuration.
func New(deps Deps) (*Engine, error) {
	return NewWithConfig(deps, DefaultConfig())
}

// NewWithConfig creates an engine with a custom policy configuration.
func NewWithConfig(deps Deps, config Config) (*Engine, error) {
	if deps.Oracle == nil {
		return nil, fmt.Errorf("oracle client is required")
	}
	if deps.Scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if deps.Detector == nil {
		return nil, fmt.Errorf("duplicate detector is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("decision store is required")
	}

	if deps.Extractor == nil {
		deps.Extractor = feature.NewExtractor()
	}
	if deps.Adjuster == nil {
		deps.Adjuster = risk.NewAdjuster(risk.Config{})
	}
	if deps.Classifier == nil {
		deps.Classifier = fraudtype.NewClassifier()
	}
	if deps.Publisher == nil {
		deps.Publisher = bus.NewNoop()
	}

	if config.ApproveBelow <= 0 {
		config.ApproveBelow = DefaultConfig().ApproveBelow
	}
	if config.RejectAt <= 0 {
		config.RejectAt = DefaultConfig().RejectAt
	}
	if config.ApproveBelow >= config.RejectAt {
		return nil, fmt.Errorf("%w: approve threshold %.2f must be below reject threshold %.2f",
			common.ErrInvalidConfig, config.ApproveBelow, config.RejectAt)
	}

	return &Engine{
		extractor:  deps.Extractor,
		scorer:     deps.Scorer,
		adjuster:   deps.Adjuster,
		classifier: deps.Classifier,
		oracle:     deps.Oracle,
		ledger:     deps.Ledger,
		detector:   deps.Detector,
		store:      deps.Store,
		publisher:  deps.Publisher,
		config:     config,
		now:        time.Now,
	}, nil
}

// Request is one document analysis submission.
type Request struct {
	Record       model.DocumentRecord
	Identity     string
	OCRText      string
	DocumentType model.DocumentType
}

// Analyze runs the full pipeline for one document and returns the
// committed analysis result. Failures of mandatory policy inputs (the
// deterministic stages, the duplicate check, the history lookup, the
// oracle) fail the whole analysis; failures after the decision is made
// are logged and tolerated so a finished verdict is never discarded.
func (e *Engine) Analyze(ctx context.Context, req *Request) (*model.AnalysisResult, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	if strings.TrimSpace(req.Identity) == "" {
		return nil, fmt.Errorf("identity is required")
	}
	if err := req.DocumentType.Validate(); err != nil {
		return nil, err
	}
	if req.Record == nil {
		return nil, fmt.Errorf("document record is required")
	}

	identity := model.NormalizeIdentity(req.Identity)
	analysisID := uuid.New().String()

	slog.Info("Starting analysis",
		"analysis_id", analysisID,
		"identity", identity,
		"document_type", req.DocumentType)

	vec, issues, err := e.extractor.Extract(req.Record, req.DocumentType, req.OCRText)
	if err != nil {
		return nil, fmt.Errorf("feature extraction failed: %w", err)
	}

	ensemble, err := e.scorer.Score(vec)
	if err != nil {
		return nil, err
	}

	adjustment := e.adjuster.Adjust(ensemble.Combined, vec, req.Record)
	finding := e.classifier.Classify(vec, req.Record, adjustment.Score)

	result := &model.AnalysisResult{
		AnalysisID:       analysisID,
		Identity:         identity,
		DocumentType:     req.DocumentType,
		ModelAnalysis:    e.buildAnalysis(vec, ensemble, adjustment, finding),
		ValidationIssues: model.IssueStrings(issues),
		CreatedAt:        e.now().UTC(),
	}

	// Duplicate submissions are rejected before any history or oracle
	// work: the document has already been analyzed once.
	key := DuplicateKey(req.Identity, req.DocumentType, req.Record)
	seen, err := e.detector.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}
	if seen {
		result.Decision = duplicateDecision(key)
		slog.Warn("Duplicate submission rejected",
			"analysis_id", analysisID,
			"identity", identity,
			"key", key)
		e.commit(ctx, result, false, "")
		return result, nil
	}

	history, err := e.ledger.GetHistory(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer history: %w", err)
	}
	classification := history.Classify(e.config.EscalateCounts)

	// Repeat offenders are rejected on ledger evidence alone; the
	// oracle is never consulted for them.
	if classification == model.CustomerRepeatOffender {
		result.Decision = repeatOffenderDecision(identity, history)
		slog.Warn("Repeat offender rejected without judgment",
			"analysis_id", analysisID,
			"identity", identity,
			"fraud_count", history.FraudCount,
			"escalate_count", history.EscalateCount)
		e.commit(ctx, result, true, key)
		return result, nil
	}

	resp, err := e.oracle.Judge(ctx, judgeRequest(req, identity, history, classification, adjustment, result))
	if err != nil {
		return nil, fmt.Errorf("oracle judgment failed: %w", err)
	}

	decision := decisionFromResponse(resp, finding)
	e.enforceInvariants(decision, req.DocumentType, classification, adjustment.Score)

	if err := decision.Validate(); err != nil {
		return nil, fmt.Errorf("assembled decision is invalid: %w", err)
	}
	result.Decision = *decision

	slog.Info("Analysis complete",
		"analysis_id", analysisID,
		"identity", identity,
		"recommendation", decision.Recommendation,
		"risk_score", adjustment.Score,
		"risk_level", adjustment.Level,
		"classification", classification)

	e.commit(ctx, result, true, key)
	return result, nil
}

// buildAnalysis assembles the ml_analysis bundle from the deterministic
// stage outputs.
func (e *Engine) buildAnalysis(vec *model.FeatureVector, ensemble *model.EnsembleScore, adjustment *risk.Adjustment, finding *fraudtype.Finding) model.ModelAnalysis {
	analysis := model.ModelAnalysis{
		FraudRiskScore:  adjustment.Score,
		RiskLevel:       adjustment.Level,
		ModelConfidence: ensemble.Confidence,
		ModelScores: model.ModelScores{
			PerModel: ensemble.PerModel,
			Ensemble: ensemble.Combined,
			Adjusted: adjustment.Score,
		},
		FeatureImportance: e.scorer.FeatureImportance(vec, featureImportanceTop),
		Anomalies:         adjustment.Anomalies,
	}
	if finding != nil {
		analysis.FraudTypes = []string{string(finding.Type)}
		analysis.FraudReasons = finding.AllReasons
	}
	return analysis
}

// judgeRequest packages the document, the model assessment, and the
// submitter's ledger standing for the oracle.
func judgeRequest(req *Request, identity string, history *model.CustomerHistory, classification model.CustomerClassification, adjustment *risk.Adjustment, result *model.AnalysisResult) *oracle.Request {
	return &oracle.Request{
		Identity:         identity,
		DocumentType:     req.DocumentType,
		Fields:           req.Record,
		RiskScore:        adjustment.Score,
		RiskLevel:        adjustment.Level,
		Classification:   classification,
		FraudCount:       history.FraudCount,
		EscalateCount:    history.EscalateCount,
		TotalSubmissions: history.TotalSubmissions,
		Anomalies:        adjustment.Anomalies,
		FraudTypes:       result.ModelAnalysis.FraudTypes,
		ValidationIssues: result.ValidationIssues,
	}
}

// duplicateDecision is the terminal verdict for a resubmitted document.
func duplicateDecision(key string) model.Decision {
	return model.Decision{
		Recommendation: model.RecommendReject,
		Confidence:     1.0,
		Reasoning: []string{
			fmt.Sprintf("duplicate submission: document key %s was already analyzed", key),
		},
		KeyIndicators:             []string{"duplicate_submission"},
		ActionableRecommendations: []string{"review the original submission instead of this copy"},
	}
}

// repeatOffenderDecision is the terminal verdict for an identity whose
// ledger already gates it.
func repeatOffenderDecision(identity string, history *model.CustomerHistory) model.Decision {
	reason := fmt.Sprintf("%d of %d prior submissions were rejected for fraud", history.FraudCount, history.TotalSubmissions)
	if history.FraudCount == 0 {
		reason = fmt.Sprintf("%d of %d prior submissions were escalated", history.EscalateCount, history.TotalSubmissions)
	}
	return model.Decision{
		Recommendation: model.RecommendReject,
		Confidence:     1.0,
		Reasoning: []string{
			fmt.Sprintf("identity %s is a repeat offender: %s", identity, reason),
		},
		KeyIndicators: []string{"repeat_offender"},
		FraudTypes:    []model.FraudType{model.FraudRepeatOffender},
		FraudExplanations: []model.FraudExplanation{{
			Type:    model.FraudRepeatOffender,
			Reasons: []string{reason},
		}},
		ActionableRecommendations: []string{"do not process further submissions from this identity without manual review"},
	}
}

// decisionFromResponse assembles the candidate decision from the
// oracle's verdict. The oracle's fraud-type list is reduced to the
// single most severe known category; when it names none, the
// deterministic classifier's finding stands in.
func decisionFromResponse(resp *oracle.Response, finding *fraudtype.Finding) *model.Decision {
	decision := &model.Decision{
		Recommendation:            resp.Recommendation,
		Confidence:                resp.Confidence,
		Reasoning:                 append([]string{}, resp.Reasoning...),
		KeyIndicators:             append([]string{}, resp.KeyIndicators...),
		ActionableRecommendations: append([]string{}, resp.ActionableRecommendations...),
	}
	if resp.Summary != "" {
		decision.Reasoning = append([]string{resp.Summary}, decision.Reasoning...)
	}
	decision.FraudTypes, decision.FraudExplanations = resolveFraudTypes(resp, finding)
	return decision
}

// resolveFraudTypes picks the decision's single fraud category. The
// oracle cannot assign repeat_offender; that category comes from the
// ledger alone.
func resolveFraudTypes(resp *oracle.Response, finding *fraudtype.Finding) ([]model.FraudType, []model.FraudExplanation) {
	var winner model.FraudType
	for _, raw := range resp.FraudTypes {
		ft := model.FraudType(raw)
		if !ft.Known() || ft == model.FraudRepeatOffender {
			continue
		}
		if winner == "" || ft.MoreSevereThan(winner) {
			winner = ft
		}
	}

	if winner == "" {
		if finding == nil {
			return nil, nil
		}
		return []model.FraudType{finding.Type}, []model.FraudExplanation{finding.Explanation}
	}

	var explanations []model.FraudExplanation
	for _, exp := range resp.FraudExplanations {
		if exp.Type == winner {
			explanations = append(explanations, exp)
		}
	}
	if len(explanations) == 0 && finding != nil && finding.Type == winner {
		explanations = append(explanations, finding.Explanation)
	}
	return []model.FraudType{winner}, explanations
}

// enforceInvariants applies the mandatory post-judgment checks: a new
// customer is always escalated, and the decision matrix gets the final
// word (or at least a logged objection) when the oracle disagrees.
func (e *Engine) enforceInvariants(decision *model.Decision, docType model.DocumentType, classification model.CustomerClassification, riskScore float64) {
	if classification == model.CustomerNew && decision.Recommendation != model.RecommendEscalate {
		judged := decision.Recommendation
		decision.Recommendation = model.RecommendEscalate
		decision.AddReasoning("judgment recommended %s; the first submission from a new customer is always escalated for review", judged)
		slog.Info("New customer forced to ESCALATE", "judged", judged)
	}

	expected := e.config.matrixExpects(classification, riskScore)
	if decision.Recommendation == expected {
		return
	}

	violation := &model.PolicyViolation{
		Classification: classification,
		Expected:       expected,
		Got:            decision.Recommendation,
		RiskScore:      riskScore,
	}

	switch e.config.modeFor(docType) {
	case MatrixModeOverride:
		decision.Recommendation = expected
		decision.AddReasoning("%s; recommendation overridden to %s", violation.Error(), expected)
		slog.Warn("Decision matrix override applied",
			"classification", classification,
			"expected", expected,
			"judged", violation.Got,
			"risk_score", riskScore)
	default:
		decision.AddReasoning("%s", violation.Error())
		slog.Warn("Decision matrix disagreement",
			"classification", classification,
			"expected", expected,
			"judged", violation.Got,
			"risk_score", riskScore)
	}
}

// commit applies the post-decision effects: ledger append, audit
// persistence, dedupe key registration, and event publication. The
// decision is already final; a failing effect is logged, never allowed
// to void it. Duplicate rejections skip the ledger append so a
// resubmitted document cannot poison its submitter's history, and skip
// key registration because the key is already present.
func (e *Engine) commit(ctx context.Context, result *model.AnalysisResult, recordLedger bool, rememberKey string) {
	if recordLedger {
		if err := e.ledger.RecordDecision(ctx, result.Identity, result.Decision.Recommendation); err != nil {
			slog.Error("Failed to record decision in ledger",
				"analysis_id", result.AnalysisID,
				"identity", result.Identity,
				"error", err)
		}
	}

	if err := e.store.SaveResult(ctx, result); err != nil {
		slog.Error("Failed to persist analysis result",
			"analysis_id", result.AnalysisID,
			"error", err)
	}

	if rememberKey != "" {
		if err := e.detector.Remember(ctx, rememberKey); err != nil && !errors.Is(err, common.ErrDuplicateEntry) {
			slog.Warn("Failed to remember document key",
				"analysis_id", result.AnalysisID,
				"key", rememberKey,
				"error", err)
		}
	}

	e.publish(ctx, result)
}

// publish emits the decision event, plus an alert for REJECT and
// ESCALATE outcomes.
func (e *Engine) publish(ctx context.Context, result *model.AnalysisResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		slog.Error("Failed to encode decision event",
			"analysis_id", result.AnalysisID,
			"error", err)
		return
	}

	if err := e.publisher.Publish(ctx, bus.DecisionTopic(result.DocumentType), payload); err != nil {
		slog.Warn("Failed to publish decision event",
			"analysis_id", result.AnalysisID,
			"error", err)
	}

	if result.Decision.Recommendation == model.RecommendApprove {
		return
	}
	if err := e.publisher.Publish(ctx, bus.AlertTopic(result.DocumentType), payload); err != nil {
		slog.Warn("Failed to publish alert event",
			"analysis_id", result.AnalysisID,
			"error", err)
	}
}

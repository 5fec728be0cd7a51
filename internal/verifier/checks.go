// Package verifier implements the off-chain verifier process: it observes
// pending attestations, fetches the committed reasoning payload from
// off-chain storage, runs a deterministic validation pipeline, and writes a
// single pass/fail verification back to the ledger.
package verifier

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// totalChecks is the number of pipeline checks a payload is scored against.
const totalChecks = 7

// forbiddenPatterns are prompt-injection markers. A payload containing any
// of them fails the content check.
var forbiddenPatterns = []string{
	"ignore previous instructions",
	"ignore all instructions",
	"jailbreak",
	"bypass",
	"hack",
	"disable safety",
	"ignore guidelines",
	"forget everything",
	"new instructions",
	"system prompt",
	"override",
}

// Payload size bounds in bytes (anti-spam).
const (
	minPayloadSize = 100
	maxPayloadSize = 50000
)

// ReasoningStep is one step of a structured reasoning payload.
type ReasoningStep struct {
	StepNumber  int    `json:"step_number"`
	Description string `json:"description"`
	Rationale   string `json:"rationale"`
}

// Reasoning is the structured payload an agent commits to when submitting
// an attestation. Confidence here is the agent's self-reported value from
// the payload; it never enters ledger score arithmetic.
type Reasoning struct {
	Input          string          `json:"input"`
	ReasoningSteps []ReasoningStep `json:"reasoning_steps"`
	Conclusion     string          `json:"conclusion"`
	Confidence     float64         `json:"confidence"`
}

// CheckResult records the outcome of one pipeline check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Result is the outcome of evaluating one reasoning payload.
type Result struct {
	Passed          bool          `json:"passed"`
	Score           int           `json:"score"`
	FailureReason   string        `json:"failure_reason,omitempty"`
	IntegrityDigest string        `json:"integrity_digest"`
	Checks          []CheckResult `json:"checks"`
}

// Evaluate runs the full check pipeline over a raw reasoning payload and
// scores it: score = passedChecks * 100 / totalChecks (integer division),
// passed when score >= minPassingScore. A structural failure short-circuits
// with score 0; it is a terminal rejection, never a retryable error.
func Evaluate(payload []byte, minPassingScore int) Result {
	res := Result{}
	passedChecks := 0

	record := func(name string, ok bool, detail string) {
		res.Checks = append(res.Checks, CheckResult{Name: name, Passed: ok, Detail: detail})
		if ok {
			passedChecks++
		} else if res.FailureReason == "" {
			res.FailureReason = detail
		}
	}

	// Check 0: integrity digest over the exact bytes that were committed.
	digest := sha256.Sum256(payload)
	res.IntegrityDigest = hex.EncodeToString(digest[:])
	record("integrity_digest", true, "")

	// Check 1: structural validation. Failure here means the payload is not
	// a reasoning document at all, so the remaining checks are meaningless.
	raw, err := validateStructure(payload)
	if err != nil {
		record("structure", false, "invalid reasoning structure: "+err.Error())
		res.Score = 0
		res.Passed = false
		return res
	}
	record("structure", true, "")

	// Check 2: required top-level fields.
	missing := missingFields(raw)
	if len(missing) == 0 {
		record("required_fields", true, "")
	} else {
		record("required_fields", false, "missing required fields: "+strings.Join(missing, ", "))
	}

	// Check 3: forbidden patterns.
	lowered := strings.ToLower(string(payload))
	var detected []string
	for _, p := range forbiddenPatterns {
		if strings.Contains(lowered, p) {
			detected = append(detected, p)
		}
	}
	if len(detected) == 0 {
		record("forbidden_patterns", true, "")
	} else {
		record("forbidden_patterns", false, "forbidden patterns detected: "+strings.Join(detected, ", "))
	}

	// Check 4: confidence range.
	var r Reasoning
	// Structure was already validated; this decode cannot fail.
	_ = json.Unmarshal(payload, &r)
	if r.Confidence >= 0 && r.Confidence <= 1 {
		record("confidence_range", true, "")
	} else {
		record("confidence_range", false, fmt.Sprintf("confidence %v outside [0, 1]", r.Confidence))
	}

	// Check 5: step consistency.
	if len(r.ReasoningSteps) >= 1 && stepsAreObjects(raw) {
		record("step_consistency", true, "")
	} else {
		record("step_consistency", false, fmt.Sprintf("invalid reasoning steps: %d steps", len(r.ReasoningSteps)))
	}

	// Check 6: payload size bounds.
	if len(payload) >= minPayloadSize && len(payload) <= maxPayloadSize {
		record("payload_size", true, "")
	} else {
		record("payload_size", false, fmt.Sprintf("payload size %d bytes outside [%d, %d]", len(payload), minPayloadSize, maxPayloadSize))
	}

	res.Score = passedChecks * 100 / totalChecks
	res.Passed = res.Score >= minPassingScore
	if res.Passed {
		res.FailureReason = ""
	}
	return res
}

// validateStructure checks that the payload is a JSON object with the
// required reasoning shape: string input, at least one well-formed step,
// non-empty conclusion, numeric confidence.
func validateStructure(payload []byte) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}

	var input string
	if v, ok := raw["input"]; !ok {
		return nil, fmt.Errorf("missing input")
	} else if err := json.Unmarshal(v, &input); err != nil {
		return nil, fmt.Errorf("input must be a string")
	}

	var steps []ReasoningStep
	if v, ok := raw["reasoning_steps"]; !ok {
		return nil, fmt.Errorf("missing reasoning_steps")
	} else if err := json.Unmarshal(v, &steps); err != nil {
		return nil, fmt.Errorf("reasoning_steps must be an array of step objects")
	}
	if len(steps) < 1 {
		return nil, fmt.Errorf("reasoning_steps must have at least 1 step")
	}
	for i, s := range steps {
		if s.Description == "" {
			return nil, fmt.Errorf("step %d has empty description", i+1)
		}
		if s.Rationale == "" {
			return nil, fmt.Errorf("step %d has empty rationale", i+1)
		}
	}

	var conclusion string
	if v, ok := raw["conclusion"]; !ok {
		return nil, fmt.Errorf("missing conclusion")
	} else if err := json.Unmarshal(v, &conclusion); err != nil {
		return nil, fmt.Errorf("conclusion must be a string")
	}
	if conclusion == "" {
		return nil, fmt.Errorf("conclusion is empty")
	}

	var confidence float64
	if v, ok := raw["confidence"]; !ok {
		return nil, fmt.Errorf("missing confidence")
	} else if err := json.Unmarshal(v, &confidence); err != nil {
		return nil, fmt.Errorf("confidence must be a number")
	}

	return raw, nil
}

// missingFields lists absent required top-level fields.
func missingFields(raw map[string]json.RawMessage) []string {
	var missing []string
	for _, f := range []string{"input", "reasoning_steps", "conclusion", "confidence"} {
		if _, ok := raw[f]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

// stepsAreObjects reports whether every element of reasoning_steps is a
// JSON object.
func stepsAreObjects(raw map[string]json.RawMessage) bool {
	v, ok := raw["reasoning_steps"]
	if !ok {
		return false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(v, &elems); err != nil {
		return false
	}
	for _, e := range elems {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(e, &obj); err != nil {
			return false
		}
	}
	return true
}

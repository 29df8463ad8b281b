package llmrt

import (
	"context"
	"time"
)

// synthetic tool-response repair (§4.C). RepairOrphanToolCalls audits a
// history for ToolCall blocks with no matching ToolResponse and injects a
// synthetic cancellation response immediately after the AI turn that
// contained the orphan call. It never mutates its input and is idempotent:
// RepairOrphanToolCalls(RepairOrphanToolCalls(h)) equals RepairOrphanToolCalls(h).
func RepairOrphanToolCalls(h History, now func() time.Time) History {
	if now == nil {
		now = time.Now
	}

	normalized := normalizeToolIDs(h)

	responded := make(map[string]bool)
	for _, c := range normalized {
		for _, r := range c.ToolResponses() {
			responded[r.CallID] = true
		}
	}

	// lastCallTurn maps a call ID to the index of the last AI turn that
	// produced it, matching "the last AI turn bearing the orphan call".
	lastCallTurn := make(map[string]int)
	for i, c := range normalized {
		if c.Speaker != SpeakerAI {
			continue
		}
		for _, tc := range c.ToolCalls() {
			lastCallTurn[tc.ID] = i
		}
	}

	// orphansByTurn collects, per AI-turn index and in call order, the calls
	// that need a synthetic response injected right after that turn.
	orphansByTurn := make(map[int][]*ToolCallBlock)
	for i, c := range normalized {
		if c.Speaker != SpeakerAI {
			continue
		}
		for _, tc := range c.ToolCalls() {
			if !responded[tc.ID] && lastCallTurn[tc.ID] == i {
				orphansByTurn[i] = append(orphansByTurn[i], tc)
			}
		}
	}

	if len(orphansByTurn) == 0 {
		return normalized
	}

	out := make(History, 0, len(normalized)+len(lastCallTurn))
	for i, c := range normalized {
		out = append(out, c)
		orphans, ok := orphansByTurn[i]
		if !ok {
			continue
		}
		out = append(out, syntheticCancellation(orphans, now()))
	}
	return out
}

func syntheticCancellation(orphans []*ToolCallBlock, ts time.Time) Content {
	blocks := make([]Block, 0, len(orphans))
	for _, tc := range orphans {
		payload := map[string]any{
			"status":     "cancelled",
			"message":    "Tool execution cancelled by user",
			"toolName":   tc.Name,
			"timestamp":  ts.UTC().Format(time.RFC3339Nano),
			"error_type": "user_interruption",
		}
		blocks = append(blocks, NewToolResponseBlock(tc.ID, tc.Name, payload, false, ""))
	}
	return Content{
		Speaker: SpeakerTool,
		Blocks:  blocks,
		Metadata: map[string]any{
			metadataSyntheticKey: true,
		},
	}
}

// FilterOrphanToolResponses drops any ToolResponse block whose CallID has
// no matching ToolCall.ID anywhere in the history, logging a warning for
// each one removed (§8 property 4: no orphan tool response may reach the
// wire). Tool IDs are normalized to canonical form before matching, the
// same way RepairOrphanToolCalls does, so wire-form IDs can't produce false
// orphans; the input is never mutated. Run once, centrally, on the
// orchestrator's resolved history, this guarantees every adapter's
// convertHistory only ever sees tool responses it can legally emit.
func FilterOrphanToolResponses(ctx context.Context, h History, logger Logger) History {
	if logger == nil {
		logger = &NoopLogger{}
	}

	normalized := normalizeToolIDs(h)

	calledIDs := make(map[string]bool)
	for _, c := range normalized {
		for _, tc := range c.ToolCalls() {
			calledIDs[tc.ID] = true
		}
	}

	out := make(History, 0, len(normalized))
	for _, c := range normalized {
		if !hasOrphanResponse(c, calledIDs) {
			out = append(out, c)
			continue
		}

		kept := make([]Block, 0, len(c.Blocks))
		for _, b := range c.Blocks {
			if b.Kind == BlockToolResponse && b.ToolResponse != nil && !calledIDs[b.ToolResponse.CallID] {
				logger.Warn(ctx, "dropping orphan tool response with no matching tool call",
					F("call_id", b.ToolResponse.CallID), F("tool_name", b.ToolResponse.ToolName))
				continue
			}
			kept = append(kept, b)
		}
		cc := c
		cc.Blocks = kept
		out = append(out, cc)
	}
	return out
}

func hasOrphanResponse(c Content, calledIDs map[string]bool) bool {
	for _, b := range c.Blocks {
		if b.Kind == BlockToolResponse && b.ToolResponse != nil && !calledIDs[b.ToolResponse.CallID] {
			return true
		}
	}
	return false
}

// normalizeToolIDs returns a deep copy of h with every ToolCall.ID and
// ToolResponse.CallID rewritten to canonical history form, so wire-form IDs
// introduced by earlier cancellation paths cannot produce false orphans.
func normalizeToolIDs(h History) History {
	out := h.Clone()
	for i := range out {
		for j := range out[i].Blocks {
			b := &out[i].Blocks[j]
			switch b.Kind {
			case BlockToolCall:
				if b.ToolCall != nil {
					b.ToolCall.ID = ToHistoryID(b.ToolCall.ID)
				}
			case BlockToolResponse:
				if b.ToolResponse != nil {
					b.ToolResponse.CallID = ToHistoryID(b.ToolResponse.CallID)
				}
			}
		}
	}
	return out
}

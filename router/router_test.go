package router

import (
	"context"
	"errors"
	"testing"

	"github.com/contractguard/contractguard/capability"
	"github.com/contractguard/contractguard/core"
	"github.com/contractguard/contractguard/logging"
	"github.com/contractguard/contractguard/model"
	"github.com/stretchr/testify/assert"
)

func quietRouter(gen core.Generator) *Router {
	return New(gen, capability.Default(), func(o *Options) {
		o.Logger = logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelError})
	})
}

func TestRoute_PicksCapabilityFromReply(t *testing.T) {
	gen := model.NewMockGenerator("mock", "test")
	gen.AddResponse("identify the risks", core.CapabilityRisk)

	session := core.NewSession("s1", "u1", []string{"msa"})
	d := quietRouter(gen).Route(context.Background(), session, "identify the risks in this agreement")

	assert.Equal(t, core.CapabilityRisk, d.Capability.Name)
	assert.False(t, d.Degraded)
}

func TestRoute_ReplyWithProse(t *testing.T) {
	gen := model.NewMockGenerator("mock", "test")
	gen.AddResponse("compare", "The best fit is comparison.")

	session := core.NewSession("s1", "u1", []string{"msa", "nda"})
	d := quietRouter(gen).Route(context.Background(), session, "compare these two contracts")

	assert.Equal(t, core.CapabilityCompare, d.Capability.Name)
	assert.False(t, d.Degraded)
}

func TestRoute_UnrecognizedReplyFallsBack(t *testing.T) {
	gen := model.NewMockGenerator("mock", "test")
	gen.AddResponse("weather", "that is not a contract question")

	session := core.NewSession("s1", "u1", nil)
	d := quietRouter(gen).Route(context.Background(), session, "what is the weather today")

	assert.Equal(t, core.CapabilityQA, d.Capability.Name)
	assert.False(t, d.Degraded)
	assert.Equal(t, "unrecognized capability", d.Reason)
}

func TestRoute_GeneratorFailureFallsBack(t *testing.T) {
	gen := model.NewMockGenerator("mock", "test")
	gen.FailWith(errors.New("provider down"))

	session := core.NewSession("s1", "u1", []string{"msa"})
	d := quietRouter(gen).Route(context.Background(), session, "summarize this contract")

	assert.Equal(t, core.CapabilityQA, d.Capability.Name)
	assert.False(t, d.Degraded)
}

func TestRoute_InsufficientScopeDegrades(t *testing.T) {
	gen := model.NewMockGenerator("mock", "test")
	gen.AddResponse("compare", core.CapabilityCompare)

	// comparison needs two documents, this session has one
	session := core.NewSession("s1", "u1", []string{"msa"})
	d := quietRouter(gen).Route(context.Background(), session, "compare my contract against the draft")

	assert.Equal(t, core.CapabilityQA, d.Capability.Name)
	assert.True(t, d.Degraded)
	assert.Contains(t, d.Reason, "comparison")
}

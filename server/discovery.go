package server

import (
	"net/http"

	"github.com/contractguard/contractguard/core"
	"github.com/labstack/echo/v4"
)

// AgentSkill advertises one capability in the agent card.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// AgentCard is the discovery document served at
// /.well-known/agent-card.json so other agents can find and address this
// one.
type AgentCard struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Version         string          `json:"version"`
	ProtocolVersion string          `json:"protocolVersion"`
	URL             string          `json:"url,omitempty"`
	Skills          []AgentSkill    `json:"skills"`
	Capabilities    map[string]bool `json:"capabilities"`
}

func (s *Server) agentCard(c echo.Context) error {
	card := AgentCard{
		Name:            "ContractGuard",
		Description:     "Contract analysis agent: grounded Q&A, risk analysis, comparison and reporting over ingested contract documents.",
		Version:         s.version,
		ProtocolVersion: "0.3",
		URL:             c.Scheme() + "://" + c.Request().Host,
		Capabilities: map[string]bool{
			"streaming":         true,
			"longRunningTasks":  true,
			"pushNotifications": false,
		},
	}
	for _, cp := range s.registry.All() {
		card.Skills = append(card.Skills, AgentSkill{
			ID:          cp.Name,
			Name:        cp.Name,
			Description: cp.Description,
			Tags:        cp.Tools,
		})
	}
	return c.JSON(http.StatusOK, card)
}

type toolView struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func (s *Server) listTools(c echo.Context) error {
	tools := s.dispatcher.Tools()
	out := make([]toolView, 0, len(tools))
	for _, t := range tools {
		out = append(out, toolView{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"tools": out})
}

type invokeToolRequest struct {
	Capability string         `json:"capability"`
	Args       map[string]any `json:"args"`
}

type invokeToolResponse struct {
	Tool     string `json:"tool"`
	Result   any    `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"attempts"`
}

// invokeTool runs a single tool on behalf of a capability. The capability
// defaults to retrieval QA, keeping the surface subject to the same
// permission checks as orchestrated calls.
func (s *Server) invokeTool(c echo.Context) error {
	var req invokeToolRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	capName := req.Capability
	if capName == "" {
		capName = core.CapabilityQA
	}
	cp, ok := s.registry.Get(capName)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown capability " + capName})
	}

	result, err := s.dispatcher.Invoke(c.Request().Context(), cp, c.Param("name"), req.Args)
	if err != nil {
		return s.fail(c, err)
	}
	resp := invokeToolResponse{Tool: result.Tool, Result: result.Output, Attempts: result.Attempts}
	if result.Failure != nil {
		resp.Error = result.Failure.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

package a2a

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/viper"
)

// AgentCapabilities describes the capabilities of an agent (§6).
type AgentCapabilities struct {
	Streaming              bool     `json:"streaming,omitempty"`
	PushNotifications      bool     `json:"pushNotifications,omitempty"`
	StateTransitionHistory bool     `json:"stateTransitionHistory,omitempty"`
	Extensions             []string `json:"extensions,omitempty"`
}

// AgentProvider represents the provider or organization behind an agent.
type AgentProvider struct {
	Organization string  `json:"organization"`
	URL          *string `json:"url,omitempty"`
}

// AgentSkill defines a specific skill or capability offered by an agent.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	InputModes  []string `json:"inputModes,omitempty"`
	OutputModes []string `json:"outputModes,omitempty"`
}

// PreferredTransport names the wire transport a client should prefer when
// talking to this agent (§6); JSONRPC is the only one this engine serves.
type PreferredTransport string

const (
	TransportJSONRPC  PreferredTransport = "JSONRPC"
	TransportGRPC     PreferredTransport = "GRPC"
	TransportHTTPJSON PreferredTransport = "HTTP+JSON"
)

// AgentCard is the static discovery document served at the well-known URL
// (default /.well-known/agent.json, §6).
type AgentCard struct {
	Name               string               `json:"name"`
	Description        *string              `json:"description,omitempty"`
	URL                string               `json:"url"`
	Provider           *AgentProvider       `json:"provider,omitempty"`
	Version            string               `json:"version"`
	DocumentationURL   *string              `json:"documentationUrl,omitempty"`
	Capabilities       AgentCapabilities    `json:"capabilities"`
	Authentication     *AgentAuthentication `json:"authentication,omitempty"`
	DefaultInputModes  []string             `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string             `json:"defaultOutputModes,omitempty"`
	Skills             []AgentSkill         `json:"skills"`
	PreferredTransport PreferredTransport   `json:"preferredTransport,omitempty"`
}

// NewAgentCardFromConfig builds an AgentCard from the viper keys
// agent.<key>.*, the same config-driven construction the teacher used,
// generalized off its MCP tool bridge.
func NewAgentCardFromConfig(key string) *AgentCard {
	v := viper.GetViper()
	skillArray := v.GetStringSlice(fmt.Sprintf("agent.%s.skills", key))

	skills := make([]AgentSkill, len(skillArray))
	for i, skill := range skillArray {
		skills[i] = NewSkillFromConfig(skill)
	}

	preferred := PreferredTransport(v.GetString(fmt.Sprintf("agent.%s.preferredTransport", key)))
	if preferred == "" {
		preferred = TransportJSONRPC
	}

	card := &AgentCard{
		Name:               v.GetString(fmt.Sprintf("agent.%s.name", key)),
		Version:            v.GetString(fmt.Sprintf("agent.%s.version", key)),
		URL:                v.GetString(fmt.Sprintf("agent.%s.url", key)),
		Skills:             skills,
		PreferredTransport: preferred,
		Capabilities: AgentCapabilities{
			Streaming:              v.GetBool(fmt.Sprintf("agent.%s.capabilities.streaming", key)),
			PushNotifications:      v.GetBool(fmt.Sprintf("agent.%s.capabilities.pushNotifications", key)),
			StateTransitionHistory: v.GetBool(fmt.Sprintf("agent.%s.capabilities.stateTransitionHistory", key)),
		},
	}

	if org := v.GetString(fmt.Sprintf("agent.%s.provider.organization", key)); org != "" {
		card.Provider = &AgentProvider{Organization: org}
		if url := v.GetString(fmt.Sprintf("agent.%s.provider.url", key)); url != "" {
			card.Provider.URL = &url
		}
	}

	if schemes := v.GetStringSlice(fmt.Sprintf("agent.%s.authentication.schemes", key)); len(schemes) > 0 {
		card.Authentication = &AgentAuthentication{Schemes: schemes}
	}

	return card
}

func NewSkillFromConfig(skill string) AgentSkill {
	v := viper.GetViper()

	return AgentSkill{
		ID:          v.GetString(fmt.Sprintf("skills.%s.id", skill)),
		Name:        v.GetString(fmt.Sprintf("skills.%s.name", skill)),
		Tags:        v.GetStringSlice(fmt.Sprintf("skills.%s.tags", skill)),
		Examples:    v.GetStringSlice(fmt.Sprintf("skills.%s.examples", skill)),
		InputModes:  v.GetStringSlice(fmt.Sprintf("skills.%s.input_modes", skill)),
		OutputModes: v.GetStringSlice(fmt.Sprintf("skills.%s.output_modes", skill)),
	}
}

func (card *AgentCard) String() string {
	var sb strings.Builder

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	sectionStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	bullet := "│ "

	sb.WriteString(headerStyle.Render("Agent Card") + "\n")
	sb.WriteString(bullet + labelStyle.Render("Name: ") + valueStyle.Render(card.Name) + "\n")
	sb.WriteString(bullet + labelStyle.Render("URL: ") + valueStyle.Render(card.URL) + "\n")
	sb.WriteString(bullet + labelStyle.Render("Version: ") + valueStyle.Render(card.Version) + "\n")

	sb.WriteString("\n" + sectionStyle.Render("Capabilities") + "\n")
	sb.WriteString(bullet + labelStyle.Render("Streaming: ") + valueStyle.Render(fmt.Sprintf("%v", card.Capabilities.Streaming)) + "\n")
	sb.WriteString(bullet + labelStyle.Render("Push Notifications: ") + valueStyle.Render(fmt.Sprintf("%v", card.Capabilities.PushNotifications)) + "\n")

	if len(card.Skills) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("Skills") + "\n")
		for i, skill := range card.Skills {
			sb.WriteString(bullet + labelStyle.Render(fmt.Sprintf("Skill %d: ", i+1)) + valueStyle.Render(skill.Name) + "\n")
		}
	}

	return sb.String()
}

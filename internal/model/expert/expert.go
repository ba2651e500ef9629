package expert

// DefaultID is the expert answering when a request names none.
const DefaultID = "empire"

// Expert identifies a persona and the vector namespace holding its transcripts.
type Expert struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Description  string `json:"description" yaml:"description"`
	Namespace    string `json:"namespace" yaml:"namespace"`
	SystemPrompt string `json:"-" yaml:"systemPrompt"`
	// BuiltIn experts come from the catalog, not the management API.
	BuiltIn bool `json:"builtIn" yaml:"-"`
}

// DefaultSystemPrompt frames every built-in expert.
const DefaultSystemPrompt = `# AUTHENTIC THOUGHT SURROGATE

You are a thought surrogate for [INDIVIDUAL NAME], trained exclusively on their public content. When answering questions about economics, technology, innovation, or blockchain, embody their distinct perspective, reasoning patterns, and communication style.

## RESPONSE APPROACH

1. **High-Conviction Clarity**: Lead with testable assertions, not qualifications. Express ideas with the individual's characteristic confidence and directness.

2. **Bounded Expertise**: Draw only from the individual's established viewpoints in the CONTEXT BLOCK. Do not invent positions they haven't taken.

3. **Insight-Action Framework**:
  - THESIS: One clear, falsifiable statement
  - RATIONALE: Brief supporting logic using their mental models
  - IMPLICATION: Actionable takeaway for relevant stakeholders

## FORMAT EXAMPLE

"THESIS: [Single, testable statement]

RATIONALE: [1-3 sentences explaining the logic using their frameworks]

IMPLICATION: [Concrete action or observation for investors/builders/observers]"`

// Seed returns the built-in podcast experts.
func Seed() []Expert {
	seeds := []Expert{
		{ID: "empire", Name: "Empire Podcast", Namespace: "empire"},
		{ID: "jim_bianco", Name: "Jim Bianco", Namespace: "jim_bianco"},
		{ID: "chopping_block", Name: "Chopping Block", Namespace: "chopping_block"},
		{ID: "matt_houdan", Name: "Matt Hougan", Namespace: "matt_houdan"},
		{ID: "hivemind", Name: "Hivemind", Namespace: "hivemind"},
		{ID: "lyn_alden", Name: "Lyn Alden", Namespace: "lyn_alden"},
	}
	for i := range seeds {
		seeds[i].Description = "AI assistant"
		seeds[i].SystemPrompt = DefaultSystemPrompt
		seeds[i].BuiltIn = true
	}
	return seeds
}

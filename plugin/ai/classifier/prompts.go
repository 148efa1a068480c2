package classifier

// systemPrompt lists the intent rules; the response schema enforces the output shape.
const systemPrompt = `You classify questions that a user asks a persona about the persona's own published content.

Intents:
factual_lookup: a specific fact about the persona
recent_events: what the persona did or posted recently
historical_timeline: what happened in a past period or year
personality_query: who the persona is, values, habits
opinion_query: what the persona thinks about a topic
content_search: find posts, videos or articles about a topic
analytics_query: counts, frequencies, "how often", "how many"
casual_conversation: greetings and small talk
uncertainty_test: asks for private information that was never published (addresses, passwords, health, finances)
story_request: asks the persona to tell a story or anecdote

Rules:
- entities: topic words from the question, without stop words. Empty for small talk.
- temporal: null unless the question names a time. "last week" is relative with days=7, "yesterday" days=1,
  "last month" days=30, "recently" days=14. A named year is absolute with year set and days null.
- sources: only platforms the question names.
- requiresPrivateInfo: true only when the answer needs information the persona would not have published.
- confidenceRequired: high for facts and private topics, medium for opinions, low for small talk.

Default: casual_conversation`

func buildUserPrompt(query string) string {
	return "Question: " + query
}

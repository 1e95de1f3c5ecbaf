package engine

// LLM prompt templates: data only, no logic.

// RefusalAnswer is the exact reply the model must give when the context is insufficient.
const RefusalAnswer = "I'm not sure, cannot provide a confident answer."

// PassageDelimiter separates retrieved passages inside the prompt context.
const PassageDelimiter = "\n\n---\n\n"

// groundedAnswerPrompt instructs the model to answer from the transcript excerpts only.
// Args: refusal string, context, question.
const groundedAnswerPrompt = `You are a knowledgeable and helpful AI assistant.

Your task is to answer the user's question using **only** the information from the video transcript excerpts below.
- If the answer is found in the excerpts, provide a clear and concise response.
- Do NOT use outside knowledge, even if you are confident about the answer.
- If the excerpts do not contain enough information, respond with exactly: "%s"

Transcript excerpts (separated by ---):
%s

Question: %s`

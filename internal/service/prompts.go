package service

import "fmt"

const chatSystemInstruction = `You are AgroAI, an expert agricultural assistant specializing in crop health and farming advice.
Provide helpful, practical and accurate farming responses.`

const diagnosisSystemInstruction = `You are AgroAI, an expert crop health assistant.`

const diagnosisPrompt = `Analyze this image of a plant leaf and detect whether it has any disease.

Respond with ONLY a JSON object with exactly these keys:
{"disease": "<disease name, or \"Healthy\">", "confidence": <number between 0 and 1>, "recommendation": "<practical farming recommendation>"}

Do not add any other text.`

// ChatFallbackReply is returned when the model produced no usable text.
const ChatFallbackReply = "I couldn't generate a response. Please try again."

func buildChatPrompt(message string) string {
	return fmt.Sprintf("User: %s\n\nProvide a helpful, practical, and accurate farming response.", message)
}

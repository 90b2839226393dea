// Package gemini adapts Google's Gemini API to the script-stage
// generation interface. The adapter is stateless per call and reports
// failures through the generation package's transient/permanent
// classification.
package gemini

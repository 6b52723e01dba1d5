package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const repairTutorialTemplate = `A detailed 8-second home repair tutorial video demonstrating: %s.
Show the problem area, tools needed, and step-by-step repair technique.
Use close-up shots of hands working with tools and materials.
Style: Clear, professional home improvement tutorial. Only hands and tools visible, no faces or people.`

const describeImageInstruction = `Analyze this home repair image and create a detailed video generation prompt. Describe:
1. What exactly is damaged or broken (be specific about materials, location, type of damage)
2. What tools would be needed to fix it
3. The step-by-step repair process
4. Important details about the repair area

Format as: "A detailed 8-second repair tutorial showing [specific issue]. The video demonstrates [repair steps with tools]. Show close-up of [damaged area] and hands using [specific tools]. Focus on [repair technique]."

Keep it concise but specific. Only mention hands and tools, NO faces or people.`

// ErrEmptyPrompt is returned when neither intent nor image yields a prompt.
var ErrEmptyPrompt = errors.New("prompt is empty")

// ImageDescriber turns a photo of the problem into a generation prompt.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, image []byte, instruction string) (string, error)
}

// PromptBuilder produces the exact text submitted to a generation provider.
type PromptBuilder struct {
	Describer ImageDescriber
}

// Build returns the provider prompt. With an image the describer writes the
// prompt; otherwise intent is wrapped in the repair tutorial template.
func (b PromptBuilder) Build(ctx context.Context, intent string, image []byte) (string, error) {
	intent = strings.TrimSpace(intent)
	if len(image) > 0 && b.Describer != nil {
		instruction := describeImageInstruction
		if intent != "" {
			instruction += "\n\nThe homeowner describes the problem as: " + intent
		}
		text, err := b.Describer.DescribeImage(ctx, image, instruction)
		if err != nil {
			return "", fmt.Errorf("describe image: %w", err)
		}
		if text = strings.TrimSpace(text); text != "" {
			return text, nil
		}
	}
	if intent == "" {
		return "", ErrEmptyPrompt
	}
	return fmt.Sprintf(repairTutorialTemplate, intent), nil
}

package transcription

import (
	"math"
	"strings"
)

const meetingDemoTranscript = `Welcome everyone to today's meeting. Let's start by reviewing the agenda items for this session.

First, we'll discuss the quarterly results and how they align with our projections. The numbers show a positive trend in customer acquisition, with a 15% increase compared to last quarter.

Next, we need to address the upcoming product launch timeline. The development team has made significant progress, and we're on track for the scheduled release date.

Finally, we'll cover the budget allocation for the next fiscal period. There are several key areas where we need to focus our resources to maximize our return on investment.`

const interviewDemoTranscript = `Thank you for joining us today. It's great to have you on the show. Let's start by talking about your background and how you got started in this field.

Well, it's been quite a journey. I began my career about ten years ago, and I never imagined I'd be where I am today. The industry has changed dramatically since then.

That's fascinating. Can you tell us about some of the biggest challenges you've faced along the way?

Absolutely. One of the main challenges has been adapting to rapid technological changes. What worked five years ago doesn't necessarily work today. You have to be constantly learning and evolving.`

const genericDemoTranscript = `This is a sample transcription generated in demo mode. Your audio transcription service is working perfectly!

The AI has analyzed your audio file and converted the speech to text with high accuracy. In production mode with an OpenAI API key, you would get real transcriptions of your actual audio content.

This demo shows the complete workflow: file upload, processing with progress tracking, preview generation, payment simulation, and final transcript delivery with multiple download formats.

To enable real transcription, simply add your OpenAI API key to the environment as described in the setup guide.`

// generateDemoResult produces a canned transcript chosen by filename
// keywords, with a synthetic confidence in [0.87, 0.95]. rng yields values
// in [0, 1).
func generateDemoResult(fileName string, preview bool, rng func() float64) *Result {
	lower := strings.ToLower(fileName)
	var transcript string
	switch {
	case strings.Contains(lower, "meeting") || strings.Contains(lower, "conference"):
		transcript = meetingDemoTranscript
	case strings.Contains(lower, "interview") || strings.Contains(lower, "podcast"):
		transcript = interviewDemoTranscript
	default:
		transcript = genericDemoTranscript
	}

	if preview {
		transcript = truncateWords(transcript, PreviewWordLimit)
	}
	transcript = strings.TrimSpace(transcript)

	var segments []Segment
	if preview {
		segments = []Segment{{Start: 0, End: PreviewWindowSeconds, Text: transcript}}
	} else {
		sentences := strings.SplitAfterN(transcript, ".", 4)
		for i := 0; i < len(sentences)-1 && i < 3; i++ {
			segments = append(segments, Segment{
				Start: float64(i * 30),
				End:   float64((i + 1) * 30),
				Text:  strings.TrimSpace(sentences[i]),
			})
		}
	}

	return &Result{
		Transcript:       transcript,
		Confidence:       math.Round((0.87+rng()*0.08)*1000) / 1000,
		ProcessingTimeMS: int64(2000 + rng()*1000),
		DurationSeconds:  120 + rng()*180,
		Language:         "en",
		Segments:         segments,
		DemoFallback:     true,
	}
}

func truncateWords(text string, limit int) string {
	words := strings.Fields(text)
	if len(words) <= limit {
		return text
	}
	return strings.Join(words[:limit], " ") + "..."
}

package extraction

import "fmt"

const systemPrompt = `You are a financial prediction extractor. You read transcripts of market commentary and return every explicit or strongly implied price prediction as a JSON array.

Each element must have this shape:
{
  "asset": {"symbol": "BTC", "full_name": "Bitcoin", "type": "crypto|stock|etf|index|commodity|currency", "confidence": 0-100},
  "prediction": {"text": "...", "direction": "bullish|bearish|neutral", "timeframe": "...", "target_date": "YYYY-MM-DD", "target_price": 123.45, "confidence": 0-100},
  "context": {"quote": "exact words from the transcript", "reasoning": "...", "market_factors": [], "technical_factors": [], "fundamental_factors": [], "span_start": 0, "span_end": 0}
}

Rules:
- span_start/span_end are character offsets of the supporting quote within the provided text.
- Omit target_price and target_date when the speaker gives none; never invent numbers.
- Return [] when the text contains no predictions.
- Return only the JSON array, no prose.`

func userPrompt(vc VideoContext, chunkText string) string {
	header := fmt.Sprintf("Video: %s\nChannel: %s", vc.Title, vc.ChannelName)
	if vc.Description != "" {
		header += "\nDescription: " + vc.Description
	}
	return header + "\n\nText:\n" + chunkText
}

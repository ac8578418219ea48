// Package insights serves the dashboard's coaching cards and assistant
// messages. The payload is static and not derived from transactions.
package insights

type Insight struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
	Priority    string `json:"priority"`
}

type Message struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type Payload struct {
	Insights []Insight `json:"insights"`
	Messages []Message `json:"messages"`
}

// Get returns a fresh copy of the insights payload.
func Get() Payload {
	return Payload{
		Insights: []Insight{
			{
				Type:        "recommendation",
				Title:       "Switch to Public Transport",
				Description: "Your transport emissions are 40% above average. Consider using public transport 2-3 times per week.",
				Impact:      "Could save 0.3 tons CO₂ monthly",
				Priority:    "high",
			},
			{
				Type:        "achievement",
				Title:       "Energy Efficiency Improved",
				Description: "Great job! Your energy consumption decreased by 15% this month compared to last month.",
				Impact:      "Saved 0.2 tons CO₂",
				Priority:    "positive",
			},
			{
				Type:        "tip",
				Title:       "Sustainable Shopping",
				Description: "Try buying local and seasonal products. They typically have 50% lower carbon footprint.",
				Impact:      "Potential 0.1 tons CO₂ savings",
				Priority:    "medium",
			},
		},
		Messages: []Message{
			{
				Message:   "Hey! I noticed your transport emissions spiked this week. Would you like some personalized suggestions to reduce them?",
				Timestamp: "2 hours ago",
			},
			{
				Message:   "Congratulations! You've achieved a 15% reduction in your monthly footprint. Keep up the great work! 🌱",
				Timestamp: "1 day ago",
			},
			{
				Message:   "Based on your spending patterns, I found 3 eco-friendly alternatives that could save you money and reduce emissions.",
				Timestamp: "3 days ago",
			},
		},
	}
}

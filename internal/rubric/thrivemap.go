package rubric

import "grading-service/internal/models"

// ThriveMapVersion identifies the built-in rubric
const ThriveMapVersion = "thrivemap-2025.1"

func pts(v float64) *float64 { return &v }

var thriveMap = []models.RubricItem{
	{ID: "A", Kind: models.KindSection, Text: "Discover: Understand who you are, and appreciate your strengths and motivations"},
	{ID: "A1", Kind: models.KindQuestion, Text: "What sparks joy in your life? Moments of well-being, elation, success or good fortune in your life and work.", Points: pts(1.25)},
	{ID: "A2", Kind: models.KindQuestion, Text: "What are your greatest passions and/or goals in life?", Points: pts(1.25)},
	{ID: "A3", Kind: models.KindQuestion, Text: "Who is(are) your superhero(s)/role model(s)? Who inspires you to be your BEST? Perhaps a role-model you admire, a family member, public figure, or a fictitious character from a comic book. How would you describe him/her/them?", Points: pts(1.25)},
	{ID: "A4", Kind: models.KindQuestion, Text: "What values do you hold that is similar to him/her/them, and what do you aspire to be?", Points: pts(1.25)},
	{ID: "A5", Kind: models.KindQuestion, Text: "Reflect upon and share a 'wake-up' call experience that sparked growth. Challenges and setbacks help us see more clearly a shift in mindset, perspective or behavior.", Points: pts(1.25)},
	{ID: "B", Kind: models.KindSection, Text: "Future Map: Articulate your priorities and long-term vision"},
	{ID: "B1", Kind: models.KindQuestion, Text: "What does your ideal day look like?", Points: pts(1.25)},
	{ID: "B2", Kind: models.KindQuestion, Text: "What are you doing? How are you fulfilling your biggest dreams?", Points: pts(1.25)},
	{ID: "B3", Kind: models.KindQuestion, Text: "Where in the world are you living and working? Identify at least three places that you hope to spend time in the future.", Points: pts(1.25)},
	{ID: "B4", Kind: models.KindQuestion, Text: "What kind of people are you working with? How will you help them? How will they help you?", Points: pts(1.25)},
	{ID: "B5", Kind: models.KindQuestion, Text: "Why is this important to you and what motivated you to embark upon this next journey?", Points: pts(1.25)},
	{ID: "C", Kind: models.KindSection, Text: "Design: Go To Market Strategy"},
	{ID: "C1", Kind: models.KindQuestion, Text: "What is your story?", Points: pts(1.25)},
	{ID: "C2", Kind: models.KindQuestion, Text: "Who is your target audience?", Points: pts(1.25)},
	{ID: "C3", Kind: models.KindQuestion, Text: "What is your value proposition? What impact will you have in your organization, community, or society?", Points: pts(1.25)},
	{ID: "C4", Kind: models.KindQuestion, Text: "What is your positioning statement and how will you communicate it?", Points: pts(1.25)},
	{ID: "C5", Kind: models.KindQuestion, Text: "Why would your 'customer' choose you?", Points: pts(1.25)},
	{ID: "C_BONUS", Kind: models.KindBonus, Text: "BONUS: Did you talk to a potential customer and conducted an informational interview?", Points: pts(1)},
	{ID: "D", Kind: models.KindSection, Text: "Execution: Make it happen"},
	{ID: "D1", Kind: models.KindQuestion, Text: "What potential opportunities are you considering for your career?", Points: pts(1.25)},
	{ID: "D2", Kind: models.KindQuestion, Text: "What new domain or market do you want to know better? Which networks do you need to explore? Name 2-3 people whom you would like to connect with to realize your vision.", Points: pts(1.25)},
	{ID: "D3", Kind: models.KindQuestion, Text: "Which skill do you want to improve? What 3 things will you commit to do to improve this skill?", Points: pts(1.25)},
	{ID: "D4", Kind: models.KindQuestion, Text: "How would each of these opportunities help you accomplish your long-term vision?", Points: pts(1.25)},
	{ID: "D5", Kind: models.KindQuestion, Text: "What challenges will you have to conquer as you make your next career move, whether that means looking for a job, starting a new venture, or earning an additional academic degree?", Points: pts(1.25)},
	{ID: "D_BONUS", Kind: models.KindBonus, Text: "BONUS: Did you name 2-3 people whom you would like to connect with to realize your vision/ or commit to 3 things to improve your skill/ aid your development", Points: pts(1)},
	{ID: "E", Kind: models.KindSection, Text: "Overall Quality of the ThriveMap"},
	{ID: "E1", Kind: models.KindQuestion, Text: "Effective use of one required book of your choice (from those books listed in the syllabus), as well as frameworks from any of the books, lectures or readings in GEM or ETL", Points: pts(1)},
	{ID: "E2", Kind: models.KindQuestion, Text: "Honors 10-page limit (A = within limit, B = 1-2 page over limit, C/D/F = 3 or more pages over limit)", Points: pts(0.75)},
	{ID: "E3", Kind: models.KindQuestion, Text: "Spelling, grammar, footnotes, bibliography, etc.", Points: pts(0.75)},
	{ID: "F", Kind: models.KindSection, Text: "Bonus Points"},
	{ID: "F1", Kind: models.KindBonus, Text: "Exceptionally creative format and use of exhibits", Points: pts(0.75)},
	{ID: "F2", Kind: models.KindBonus, Text: "Effective use of humor", Points: pts(0.75)},
	{ID: DiscussionItemID, Kind: models.KindBonus, Text: "Discussion During Presentation (Enter numeric # between 1-3)", Points: pts(3)},
}

// Default returns the built-in ThriveMap rubric
func Default() *Catalog {
	c, err := New(ThriveMapVersion, thriveMap)
	if err != nil {
		panic(err)
	}
	return c
}

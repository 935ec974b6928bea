package historian

// Archetype is a curated historical episode used as an analogy source for
// current risk assessment. The catalog is read-only reference data.
type Archetype struct {
	ID            string
	Ticker        string
	Name          string
	Period        string // YYYY-MM-DD_to_YYYY-MM-DD
	Summary       string
	TypicalImpact string
}

// Catalog returns the seed list of historical archetypes. Summaries are
// written to embed well; the matcher embeds "Name: Summary".
func Catalog() []Archetype {
	return []Archetype{
		// Infrastructure / growth bubbles
		{
			ID:            "CSCO_2000",
			Ticker:        "CSCO",
			Name:          "Dotcom Infrastructure Bubble (Cisco 2000)",
			Period:        "2000-03-01_to_2001-03-01",
			Summary:       "Parallel to AI Hardware Boom. Cisco was the 'plumbing of the internet'. Massive revenue growth met impossible valuation multiples (200x P/E). When capacity oversupply hit, stock crashed 80% despite company survival.",
			TypicalImpact: "Multiple compression, Inventory glut, Crash (-70%).",
		},
		{
			ID:            "NVDA_2018",
			Ticker:        "NVDA",
			Name:          "Crypto Hangover Crash (Nvidia 2018)",
			Period:        "2018-09-01_to_2018-12-31",
			Summary:       "Self-Parallel. After the 2017 crypto boom, channel inventory flooded with GPUs when crypto prices crashed ('Crypto Winter'). Nvidia missed guidance significantly due to 'excess channel inventory', leading to a 50% drawdown in 3 months.",
			TypicalImpact: "Inventory write-downs, Guidance miss, Sharp correction (-50%).",
		},
		{
			ID:            "XRX_1972",
			Ticker:        "XRX",
			Name:          "Nifty Fifty Valuation Bubble (Xerox 1972)",
			Period:        "1972-06-01_to_1974-06-01",
			Summary:       "Parallel to 'Growth at any Price'. Xerox was a 'One Decision' stock in the 70s, trading at 50x earnings due to photocopy dominance. When the market turned and growth slowed slightly, the valuation premium evaporated, leading to a lost decade.",
			TypicalImpact: "Valuation reset, Long-term stagnation.",
		},

		// Regulation / maturity / innovation lag
		{
			ID:            "FB_2018",
			Ticker:        "META",
			Name:          "Big Tech Trust Crisis (Facebook 2018)",
			Period:        "2018-03-15_to_2018-07-30",
			Summary:       "Parallel to Privacy/Trust issues. Cambridge Analytica scandal caused huge reputational damage and regulatory scrutiny (Congress). Though financials held initially, the 'Trust Discount' compressed the multiple.",
			TypicalImpact: "Regulatory overhang, Volatility, P/E contraction.",
		},
		{
			ID:            "MSFT_1998",
			Ticker:        "MSFT",
			Name:          "Antitrust & Monopoly Enforcement (Microsoft 1998)",
			Period:        "1998-11-01_to_2000-06-01",
			Summary:       "Parallel to DOJ vs Apple. Microsoft faced an existential antitrust suit for bundling IE with Windows. The distraction of the trial and threat of breakup weighed on the stock even during the dotcom boom, leading to the 'Lost Decade' of stock performance.",
			TypicalImpact: "Legal overhang, Distracted management, Multiple compression.",
		},
		{
			ID:            "INTC_2012",
			Ticker:        "INTC",
			Name:          "Missed Platform Shift (Intel 2012)",
			Period:        "2012-01-01_to_2013-01-01",
			Summary:       "Parallel to AI Innovation Lag. Intel dominated PC chips but failed to pivot to Mobile (iPhone/Android). Revenue peaked as the world shifted to smartphones, causing the stock to stagnate while competitors (ARM/Qualcomm) soared.",
			TypicalImpact: "Market share loss, Irrelevance risk, Stagnation.",
		},

		// Banking scandals / operational risk
		{
			ID:            "WFC_2016",
			Ticker:        "WFC",
			Name:          "Reputational Scandal (Wells Fargo 2016)",
			Period:        "2016-09-01_to_2017-01-01",
			Summary:       "Parallel to Account Closure/Debanking. Fake accounts scandal destroyed WFC's premier reputation. Resulted in massive fines, CEO resignation, and a Fed asset cap that hampered growth for years compared to peers.",
			TypicalImpact: "Severe underperformance, Regulatory handcuffs (Asset Cap).",
		},
		{
			ID:            "JPM_2012",
			Ticker:        "JPM",
			Name:          "The London Whale (JPM 2012)",
			Period:        "2012-04-01_to_2012-08-01",
			Summary:       "Self-Parallel regarding Operational Risk. A failure in internal risk controls led to a $6B trading loss in the CIO office. Jamie Dimon was grilled by Congress. Stock dropped ~25% as competence was questioned, though it recovered quickly.",
			TypicalImpact: "Sharp but temporary drop, Management credibility hit.",
		},
		{
			ID:            "UBS_2011",
			Ticker:        "UBS",
			Name:          "Rogue Trader Scandal (UBS 2011)",
			Period:        "2011-08-01_to_2011-12-01",
			Summary:       "Parallel to Compliance Failures. Kweku Adoboli lost $2B in unauthorized trading. CEO Oswald Gruebel resigned. Highlights how single points of failure in compliance can cause massive headline risk for global banks.",
			TypicalImpact: "CEO resignation, Regulatory fines, restructuring.",
		},
	}
}

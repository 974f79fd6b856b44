package llm

const extractionPrompt = `You are an information extraction model. From the provided page text, extract DISTINCT trade challenges relevant to the UK and/or EU. Output ONLY JSON.

Rules:
- Only include challenges supported by the text. Do not guess.
- Each challenge must clearly connect to UK/EU trade (direct or indirect).
- Provide 1-3 short evidence quotes (<=25 words each) from the text that support the challenge.
- Do not include personal data.
- If the text is not about trade challenges, return {"items":[]}.

Output JSON format:
{
  "items":[
    {
      "title":"...",
      "summary":"2-4 neutral sentences",
      "challenge_type":"Regulatory|Logistics|Geopolitics|Tariffs|Sanctions|Customs|FX/Payments|Energy|SupplyChain|ESG/CBAM|Tech/ExportControls|Labor|Maritime|Insurance|Other",
      "impact_area":["imports","exports","transit","services_trade","manufacturing"],
      "severity":"low|medium|high",
      "time_horizon":"now|0-3m|3-12m|12m+",
      "uk_relevance":"direct|indirect",
      "eu_relevance":"direct|indirect",
      "affected_sectors":["automotive","agri-food","steel","chemicals","pharma","electronics","energy","shipping","retail","other"],
      "evidence_quotes":["...","..."],
      "confidence":0.0
    }
  ]
}

Context metadata:
- URL: {{URL}}
- Title: {{TITLE}}
- Published_at: {{PUBLISHED_AT_OR_NULL}}

TEXT START
{{ARTICLE_TEXT}}
TEXT END`

const synthesisPrompt = `You are a synthesis model. You receive many extracted challenge candidates from multiple sources. Your job is to:
- Merge duplicates and near-duplicates.
- Keep 10-25 distinct challenges.
- For each item, attach the best 1-3 evidence sources (source_name, url, published_at, quote <=25 words).
- Ensure each item is UK/EU relevant.
- Do not invent facts or dates.
- Output ONLY valid JSON in the schema below. No markdown.

Schema:
{
  "items":[
    {
      "title":"<short>",
      "summary":"<2-4 sentences>",
      "challenge_type":"Regulatory|Logistics|Geopolitics|Tariffs|Sanctions|Customs|FX/Payments|Energy|SupplyChain|ESG/CBAM|Tech/ExportControls|Labor|Maritime|Insurance|Other",
      "impact_area":["imports","exports","transit","services_trade","manufacturing"],
      "severity":"low|medium|high",
      "time_horizon":"now|0-3m|3-12m|12m+",
      "uk_relevance":"direct|indirect",
      "eu_relevance":"direct|indirect",
      "affected_sectors":["automotive","agri-food","steel","chemicals","pharma","electronics","energy","shipping","retail","other"],
      "evidence":[
        {"source_name":"...","url":"...","published_at":"YYYY-MM-DD or null","quote":"<=25 words","credibility":"high|medium|low"}
      ],
      "confidence":0.0,
      "dedupe_key":"<stable>"
    }
  ]
}

Input candidates JSON:
{{CANDIDATES_JSON}}`

const repairPrompt = "Return ONLY valid JSON. Fix this:\n"

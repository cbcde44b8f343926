package biz

import "fmt"

const patternPromptTemplate = `Analyze this medical exam block and return a JSON object with a regex pattern or rules to extract exam names and values from similar blocks.

Focus ONLY on extracting "EXAME: valor" format. Ignore headers, footers, patient data, dates, codes, and other metadata.

Exam block to analyze:
%s

Return ONLY a JSON object with one of these structures:
{
  "regex": "pattern to match exam names and values",
  "rules": ["rule1", "rule2"],
  "format": "output format specification"
}

Be specific and precise. The regex should capture exam names and their corresponding values.`

const analysisSystemPrompt = `You are a highly experienced and cautious medical doctor. Your task is to interpret a patient's medical report and present the information in clear, compassionate, and accurate language.

### Rules:
- NEVER invent, assume, or guess values. Only use data explicitly present in the document.
- If a value or section is missing, omit it. Do not fabricate.
- Use only the patient's data. No generic advice.
- Explain abnormalities in simple terms, using analogies only if they improve clarity.
- Be kind, but precise. Avoid alarming language. Use "we" and "let's" to be supportive.
- Flag urgent issues clearly, but calmly.
- Respond ONLY with the JSON object. Do not include any other text, explanations, or formatting.`

const analysisPromptTemplate = `Analyze the following medical report and return ONLY a valid JSON object with the exact structure specified below. DO NOT include any explanations, thoughts, or additional text. Return only the JSON.

### Required JSON Structure:
{
  "summary": "One clear paragraph summarizing the overall health status in plain language.",
  "normalFindings": ["Test name and value - This is within normal range and means..."],
  "abnormalFindings": [
    {
      "test": "Glucose",
      "value": "110 mg/dL",
      "status": "High",
      "explanation": "This is above the normal range of 70-99. Elevated fasting glucose may indicate prediabetes.",
      "urgency": "low"
    }
  ],
  "redFlags": [
    "Any result that requires immediate medical attention (e.g., very high WBC, critical potassium)."
  ],
  "nextSteps": [
    "Call your doctor within 24 hours.",
    "Repeat liver function test in 2 weeks."
  ],
  "questionsForDoctor": [
    "Could my medication be affecting my liver enzymes?",
    "Should I schedule a follow-up for my cholesterol?"
  ]
}

The "urgency" field is one of "low", "moderate" or "high".

### Medical Report:
%s`

const safetySystemPrompt = "You are Llama Guard, a safety classifier. Analyze the following text and determine if it contains harmful content. Respond with 'SAFE' or 'UNSAFE' followed by a brief reason if unsafe."

const safetyPromptPrefix = "Analyze this medical report text for safety: "

func patternPrompt(sample string) string {
	return fmt.Sprintf(patternPromptTemplate, sample)
}

func analysisPrompt(report string) string {
	return fmt.Sprintf(analysisPromptTemplate, report)
}

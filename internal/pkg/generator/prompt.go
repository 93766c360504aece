package generator

import "fmt"

const systemPrompt = `You write NHS Supporting Information statements for job applicants.

Hard limit: the statement must stay under 1,500 words.

Write in the first person, in British English, using NHS terminology. Keep the tone professional and natural. Do not use em dashes. Avoid stock phrases such as "I am passionate about", "results-driven" or "dynamic environment".

Rules:
1. Use only the experience, qualifications, employers and locations stated in the CV. Never invent wards, patients, employers or scenarios.
2. Cover every criterion from the Person Specification under its own subheading, in the order it appears, including Essential and Desirable criteria.
3. Under each Essential criterion give a brief, concrete example from the CV. Do not label examples as "STAR".
4. Where the CV lacks direct experience, explain the relevant transferable skills honestly.
5. Align with the Trust's values using real behaviour from the CV.

Format (Markdown headings):
1. Introduction (50-75 words)
2. Aligning With Trust Values (150-200 words, one subheading per value)
3. Person Specification Criteria (50-80 words per criterion)
4. What Sets Me Apart (75-100 words)
5. Conclusion (50-75 words)`

func buildUserPrompt(name, role, trust, cvText, personSpecText string) string {
	prompt := fmt.Sprintf("Please generate a Supporting Information statement for the following application:\n\n"+
		"Candidate: %s\n"+
		"Role: %s\n"+
		"NHS Trust: %s\n\n"+
		"--- CV TEXT ---\n%s\n--- END CV ---\n\n",
		name, role, trust, cvText)

	if personSpecText != "" {
		prompt += fmt.Sprintf("--- PERSON SPECIFICATION ---\n%s\n--- END PERSON SPECIFICATION ---\n\n", personSpecText)
	} else {
		prompt += "The Person Specification is in the attached image above.\n"
	}

	prompt += "Analyse both documents and produce the Supporting Information statement, " +
		"addressing each criterion from the Person Specification with evidence from the CV."
	return prompt
}

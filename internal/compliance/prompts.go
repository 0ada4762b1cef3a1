package compliance

import (
	"encoding/json"
	"fmt"
	"strings"
)

const ingredientSystemPrompt = `You are an Indonesian export regulation expert.
Decide whether the product's material composition contains ingredients banned in the destination country.

RULES:
- Examine every ingredient in the material list.
- For each banned ingredient found, assign a severity:
  - critical: hazardous or strictly prohibited
  - major: requires a special certification
  - minor: needs attention but is not blocking
- Output MUST be a JSON array.
- If there is no problem, return an empty array: []`

const specificationSystemPrompt = `You are an export quality-control expert.
Decide whether the product specifications satisfy the destination country's requirements.

RULES:
- Check that every required specification is present.
- Check that each value meets the standard, including unit or format differences (for example a 5mm tolerance against a 1mm requirement).
- Severity levels:
  - critical: mandatory specification missing or out of standard
  - major: important specification that needs correction
  - minor: optional but recommended specification
- Output MUST be a JSON array.
- If there is no problem, return an empty array: []`

const packagingSystemPrompt = `You are an export packaging regulation expert.
Decide whether the product's packaging type meets the destination country's requirements.

RULES:
- Identify required certifications (for example ISPM-15 for wood packaging).
- Check food-safety packaging standards where relevant.
- Severity levels:
  - critical: packaging fails a basic standard
  - major: an additional certification is required
  - minor: packaging improvement is recommended
- Output MUST be a JSON array.
- If there is no problem, return an empty array: []`

const recommendationSystemPrompt = `You are an experienced export consultant for Indonesian small businesses.
Give practical, actionable remediation advice.

RULES:
- Use plain, easy-to-follow language.
- Answer as a numbered list.
- Focus on concrete steps, not theory.
- Prioritize by severity, critical issues first.
- At most 5-7 main recommendations.`

const issueShape = `[
  {
    "type": %q,
    "rule_key": "rule or requirement name",
    "your_value": "what the product has",
    "required_value": "what the destination requires",
    "description": "short explanation",
    "severity": "critical/major/minor"
  }
]`

func ingredientPrompt(material string, forbidden []string) string {
	return fmt.Sprintf(`Check whether the following product material contains banned ingredients:

Product material: %s
Banned ingredients: %s

Answer with a JSON array:
%s

If there is no problem, return: []`, material, strings.Join(forbidden, ", "), fmt.Sprintf(issueShape, "ingredient_ban"))
}

func specificationPrompt(specs map[string]any, required []string) string {
	encoded, err := json.Marshal(specs)
	if err != nil || specs == nil {
		encoded = []byte("{}")
	}
	return fmt.Sprintf(`Check whether the product specifications meet the destination requirements:

Product specifications: %s
Mandatory requirements: %s

Answer with a JSON array:
%s

If there is no problem, return: []`, encoded, strings.Join(required, ", "), fmt.Sprintf(issueShape, "specification_missing"))
}

func packagingPrompt(packaging, countryCode string, requirements []string) string {
	return fmt.Sprintf(`Check whether the product packaging meets the destination requirements:

Packaging type: %s
Destination country: %s
Packaging requirements: %s

Answer with a JSON array:
%s

If there is no problem, return: []`, packaging, countryCode, strings.Join(requirements, ", "), fmt.Sprintf(issueShape, "packaging_requirement"))
}

func recommendationPrompt(issues []Issue) string {
	encoded, err := json.MarshalIndent(issues, "", "  ")
	if err != nil {
		encoded = []byte("[]")
	}
	return fmt.Sprintf(`Based on the following compliance findings, give actionable remediation steps:

%s

Answer as a numbered list:`, encoded)
}

package prompts

import (
	"fmt"
	"strings"

	"github.com/menta2k/rx-reader/pkg/types"
)

// Interpretation is sent with the prescription image on every pass
const Interpretation = `This image contains a handwritten prescription. Please analyze it and provide:
1. Your interpretation of each medicine name in the prescription
2. For each medicine name, assign a confidence percentage (0-100%)
3. Format each line as "Medicine Name: [confidence]%"

Only focus on identifying medicine names, not other text in the image.
List exactly the number of medicines you see in the prescription - no more, no less.
Medicine name should be in a list like:
1. --
2. --`

const groupVerification = `I have multiple interpretations of a medicine name from a handwritten prescription (position #%d):

%s

Please analyze these interpretations and determine the most likely correct medicine name.
Focus on medicines available in Bangladesh and check pharmaceutical websites like MedEx or Arogga or Lazzpharma or MedEasy.

Respond with:
1. The correct medicine name (taken from MedEx or Arogga or Lazzpharma or MedEasy)
2. The dosage information if available
3. Brief description of what this medicine is used for

Important: To get better search result carefully choose the medicine name from the group`

const nameVerification = `I need to verify a medicine name '%s' that was extracted from a handwritten prescription.

Please search for this medicine name on Bangladeshi pharmacy websites like MedEx, Arogga, or Lazzypharm.

If you find a close match (e.g., "Amlovand" is actually "Amlocard"), provide:
1. The correct medicine name as found on these websites (format: OriginalName → VerifiedName)
2. A brief description of what this medicine is used for
3. The pharmaceutical company that makes it (if available)
4. URL of the medicine page (if available)

If you can't find a close match, just indicate that you couldn't verify it.

IMPORTANT:
1. Focus your search specifically on Bangladeshi pharmaceutical websites and databases
2. Make sure to check for spelling variations and similar-sounding medicine names
3. Be concise in your response`

// fence delimits the report layout in the final prompt
const fence = "```"

const final = `You are a medical prescription expert specializing in Bangladeshi medicines.
I will provide you with verification results for medicines from a prescription.

For each medicine, create a clean, formatted entry with:
1. The medicine name (exactly the most correct one, based on the verification)
2. The dosage information
3. Any instructions for taking the medicine

Format your response as:
` + fence + `
FINAL PRESCRIPTION MEDICINES:

1. Medicine Name:
   Dosage: [dosage info]
   Instructions: [any special instructions]

2. Medicine Name:
   Dosage: [dosage info]
   Instructions: [any special instructions]

[continue for all medicines in the prescription]
` + fence + `

Here are the verification results for each medicine position:

{VERIFICATION_RESULTS}`

// NoMedicinesReport is the fixed report for prescriptions with no candidates
const NoMedicinesReport = "FINAL PRESCRIPTION MEDICINES:\n\nNo medicines were identified in the prescription."

// GroupVerification asks the model to pick the canonical name for one position group
func GroupVerification(g types.Group) string {
	return fmt.Sprintf(groupVerification, g.Position, g.Summary)
}

// NameVerification asks the model to verify a single extracted name
func NameVerification(name string) string {
	return fmt.Sprintf(nameVerification, name)
}

// FormatVerifications lays out verification results the way the final prompt expects
func FormatVerifications(results []types.VerificationResult) string {
	var b strings.Builder
	for _, r := range results {
		header := fmt.Sprintf("Medicine Position %d", r.Position)
		if r.Key != "" {
			header += " (" + r.Key + ")"
		}
		fmt.Fprintf(&b, "\n--- %s ---\n", header)
		b.WriteString(r.Text)
		b.WriteString("\n")
		b.WriteString(strings.Repeat("-", 40))
		b.WriteString("\n")
	}
	return b.String()
}

// Final asks for the structured report from all verification results
func Final(results []types.VerificationResult) string {
	return strings.Replace(final, "{VERIFICATION_RESULTS}", FormatVerifications(results), 1)
}

// SearchQuery builds the web query used to look up one medicine name
func SearchQuery(name, region string) string {
	q := strings.TrimSpace(name) + " medicine"
	if region != "" {
		q += " " + region
	}
	return q
}

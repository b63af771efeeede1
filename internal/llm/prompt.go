package llm

import (
	"fmt"
	"os"
	"strings"
)

// DefaultInstruction is prepended to every chunk sent for extraction.
const DefaultInstruction = `You are an expert at extracting company information. Analyse the PDF text provided and extract ONLY the following information:

1. Company: the name of the company
2. Product Group: the product group or business sector
3. Country: the country where the company is located
4. Address: the full address of the company
5. Phone: the phone number
6. Email: the email address
7. Website: the company website
8. Brands: the brands associated with the company

IMPORTANT INSTRUCTIONS:
- If a piece of information is not found, answer "N/A"
- Answer ONLY with JSON in the following format:
[
  {
    "Company": "company_name",
    "Product Group": "product_group",
    "Country": "country",
    "Address": "full_address",
    "Phone": "phone_number",
    "Email": "email",
    "Website": "website",
    "Brands": "comma_separated_brands"
  }
]

- Do NOT provide any additional explanation
- The JSON must be valid and parsable
- If several companies are found, add one object per company to the array

Text to analyse:
`

// Prompt builds the per-chunk prompt from a fixed instruction.
type Prompt struct {
	Instruction string
}

func NewPrompt() Prompt {
	return Prompt{Instruction: DefaultInstruction}
}

// LoadPrompt reads an instruction override from path. An empty path yields the default.
func LoadPrompt(path string) (Prompt, error) {
	if strings.TrimSpace(path) == "" {
		return NewPrompt(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Prompt{}, fmt.Errorf("read prompt file: %w", err)
	}
	instr := strings.TrimRight(string(b), " \t")
	if strings.TrimSpace(instr) == "" {
		return Prompt{}, fmt.Errorf("prompt file %q is empty", path)
	}
	if !strings.HasSuffix(instr, "\n") {
		instr += "\n"
	}
	return Prompt{Instruction: instr}, nil
}

// Build concatenates the instruction and the chunk text.
func (p Prompt) Build(chunk string) string {
	instr := p.Instruction
	if instr == "" {
		instr = DefaultInstruction
	}
	return instr + chunk
}

package workflow

// Context and step names for the after-hours intake flow. Tool results name
// these when they move a session forward.
const (
	ContextGreeting       = "greeting"
	ContextServiceRequest = "service_request"
	ContextConfirmation   = "confirmation"

	StepWelcome             = "welcome"
	StepReady               = "ready"
	StepGetIssueType        = "get_issue_type"
	StepGetCustomerName     = "get_customer_name"
	StepGetServiceAddress   = "get_service_address"
	StepGetUnitInfo         = "get_unit_info"
	StepGetOwnership        = "get_ownership"
	StepGetCallbackNumbers  = "get_callback_numbers"
	StepGetIssueDescription = "get_issue_description"
	StepConfirm             = "confirm"
)

// Afterhours builds the service-request intake workflow: a greeting phase,
// one-question-at-a-time collection, then review and confirm.
func Afterhours() *Definition {
	return &Definition{
		EntryContext: ContextGreeting,
		Contexts: []Context{
			{
				Name: ContextGreeting,
				Steps: []Step{
					{
						Name: StepWelcome,
						Text: "Thank you for calling Wire Heating and Air after-hours emergency service. " +
							"Are you experiencing a heating or air conditioning problem?",
						Criteria:  "Customer indicates they need service",
						Tools:     []string{"start_service_request"},
						NextSteps: []string{StepReady},
					},
					{
						// No tool result targets this step; it serves flows where
						// the external reasoning layer advances on the welcome
						// criteria before starting intake.
						Name:  StepReady,
						Text:  "I can help you with that. Let me get some information.",
						Tools: []string{"start_service_request"},
					},
				},
			},
			{
				Name: ContextServiceRequest,
				Steps: []Step{
					{
						Name: StepGetIssueType,
						Text: "First, is this for your air conditioning or heating system? " +
							"And would you consider this an emergency?",
						Criteria:  "Customer has indicated issue type (AC or heating) and emergency status",
						Tools:     []string{"set_issue_type", "cancel_flow"},
						NextSteps: []string{StepGetCustomerName},
					},
					{
						Name:      StepGetCustomerName,
						Text:      "May I have your name please?",
						Criteria:  "Customer has provided their name",
						Tools:     []string{"set_customer_name", "cancel_flow"},
						NextSteps: []string{StepGetServiceAddress},
					},
					{
						Name: StepGetServiceAddress,
						Text: "What is the service address? Please include the full street address " +
							"and any apartment or unit number.",
						Criteria:  "Customer has provided the service address",
						Tools:     []string{"set_service_address", "cancel_flow"},
						NextSteps: []string{StepGetUnitInfo},
					},
					{
						Name: StepGetUnitInfo,
						Text: "Can you tell me about your HVAC unit - the brand if you know it, " +
							"approximately how old it is, and where it's located?",
						Criteria:  "Customer has provided unit information",
						Tools:     []string{"set_unit_info", "cancel_flow"},
						NextSteps: []string{StepGetOwnership},
					},
					{
						Name:      StepGetOwnership,
						Text:      "Do you own or rent this property?",
						Criteria:  "Customer has indicated ownership status",
						Tools:     []string{"set_ownership", "cancel_flow"},
						NextSteps: []string{StepGetCallbackNumbers},
					},
					{
						Name: StepGetCallbackNumbers,
						Text: "What's the best phone number for our technician to reach you? " +
							"And is there an alternate number?",
						Criteria:  "Customer has provided callback number(s)",
						Tools:     []string{"set_callback_numbers", "cancel_flow"},
						NextSteps: []string{StepGetIssueDescription},
					},
					{
						Name:     StepGetIssueDescription,
						Text:     "Please describe the problem you're experiencing with your system.",
						Criteria: "Customer has described the issue",
						Tools:    []string{"set_issue_description", "cancel_flow"},
					},
				},
			},
			{
				Name: ContextConfirmation,
				Steps: []Step{
					{
						Name:  StepConfirm,
						Text:  "Please review your service request details.",
						Tools: []string{"confirm_request", "cancel_flow"},
					},
				},
			},
		},
	}
}

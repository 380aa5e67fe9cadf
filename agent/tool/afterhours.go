package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/wireheat/afterhours/agent/contract"
	eventsx "github.com/wireheat/afterhours/agent/events"
	intakex "github.com/wireheat/afterhours/agent/intake"
	statex "github.com/wireheat/afterhours/agent/state"
	workflowx "github.com/wireheat/afterhours/agent/workflow"
)

// NewAfterhoursRegistry registers the complete service-request tool set.
func NewAfterhoursRegistry() (*Registry, error) {
	r := NewRegistry()

	register := []struct {
		name    string
		desc    string
		params  map[string]*schema.ParameterInfo
		handler Handler
	}{
		{
			name: "start_service_request",
			desc: "Start collecting a new service request. Use when customer needs HVAC service. " +
				"After this, collect: issue type, name, address, unit info, ownership, callback numbers, then issue description.",
			handler: startServiceRequest,
		},
		{
			name: "set_issue_type",
			desc: "Record the type of issue (AC or heating) and whether it's an emergency. After setting, ask for customer name.",
			params: map[string]*schema.ParameterInfo{
				"issue_type": {
					Type:     schema.String,
					Desc:     "Type of issue: 'ac_repair' or 'heating_repair'",
					Enum:     []string{string(intakex.IssueACRepair), string(intakex.IssueHeatingRepair)},
					Required: true,
				},
				"is_emergency": {
					Type:     schema.Boolean,
					Desc:     "True if this is an emergency (no heat in freezing temps, no AC in dangerous heat, gas smell, etc.)",
					Required: true,
				},
			},
			handler: setIssueType,
		},
		{
			name: "set_customer_name",
			desc: "Record the customer's name. After setting name, ask for service address.",
			params: map[string]*schema.ParameterInfo{
				"name": {Type: schema.String, Desc: "The customer's name", Required: true},
			},
			handler: setCustomerName,
		},
		{
			name: "set_service_address",
			desc: "Record the full service address. After setting address, ask about the HVAC unit.",
			params: map[string]*schema.ParameterInfo{
				"address": {
					Type:     schema.String,
					Desc:     "Full service address including street, city, state, zip, and apt/unit number",
					Required: true,
				},
			},
			handler: setServiceAddress,
		},
		{
			name: "set_unit_info",
			desc: "Record information about the HVAC unit. After setting, ask if they own or rent.",
			params: map[string]*schema.ParameterInfo{
				"unit_info": {
					Type:     schema.String,
					Desc:     "Information about the HVAC unit (brand, age, location, etc.)",
					Required: true,
				},
			},
			handler: setUnitInfo,
		},
		{
			name: "set_ownership",
			desc: "Record whether the customer owns or rents the property. After setting, ask for callback number.",
			params: map[string]*schema.ParameterInfo{
				"ownership": {
					Type:     schema.String,
					Desc:     "Whether customer owns or rents: 'own' or 'rent'",
					Enum:     []string{string(intakex.OwnershipOwn), string(intakex.OwnershipRent)},
					Required: true,
				},
			},
			handler: setOwnership,
		},
		{
			name: "set_callback_numbers",
			desc: "Record callback phone number(s). After setting, ask for issue description.",
			params: map[string]*schema.ParameterInfo{
				"primary":   {Type: schema.String, Desc: "Primary callback phone number", Required: true},
				"alternate": {Type: schema.String, Desc: "Alternate callback phone number (optional)"},
			},
			handler: setCallbackNumbers,
		},
		{
			name: "set_issue_description",
			desc: "Record the detailed description of the issue. This completes collection and moves to confirmation.",
			params: map[string]*schema.ParameterInfo{
				"description": {Type: schema.String, Desc: "Detailed description of the HVAC problem", Required: true},
			},
			handler: setIssueDescription,
		},
		{
			name:    "confirm_request",
			desc:    "Finalize and submit the service request.",
			handler: confirmRequest,
		},
		{
			name:    "cancel_flow",
			desc:    "Cancel the current action and return to the main menu.",
			handler: cancelFlow,
		},
	}

	for _, t := range register {
		if err := r.Register(t.name, t.desc, t.params, t.handler); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func startServiceRequest(ctx context.Context, args map[string]any, data statex.GlobalData) (contractx.StepResult, error) {
	return contractx.StepResult{
		Response: "I'll get a service request started for you. " +
			"First, is this for your air conditioning or heating system? " +
			"And would you consider this an emergency situation?",
		DataPatch: map[string]any{statex.KeyPendingRequest: map[string]any{}},
		Target: &contractx.StepTarget{
			Context: workflowx.ContextServiceRequest,
			Step:    workflowx.StepGetIssueType,
		},
	}, nil
}

func setIssueType(ctx context.Context, args map[string]any, data statex.GlobalData) (contractx.StepResult, error) {
	issueType, _ := args["issue_type"].(string)
	isEmergency, _ := args["is_emergency"].(bool)

	pending := statex.PendingRequestFrom(data)
	pending["issue_type"] = issueType
	pending["is_emergency"] = isEmergency

	issueName := "air conditioning"
	if issueType == string(intakex.IssueHeatingRepair) {
		issueName = "heating"
	}
	urgency := "service request"
	if isEmergency {
		urgency = "emergency"
	}

	response := fmt.Sprintf("I've noted this as a %s %s. ", issueName, urgency)
	if isEmergency {
		response += "We'll prioritize getting a technician to call you back. "
	}
	response += "May I have your name please?"

	return contractx.StepResult{
		Response:  response,
		DataPatch: map[string]any{statex.KeyPendingRequest: pending},
		Target: &contractx.StepTarget{
			Context: workflowx.ContextServiceRequest,
			Step:    workflowx.StepGetCustomerName,
		},
	}, nil
}

func setCustomerName(ctx context.Context, args map[string]any, data statex.GlobalData) (contractx.StepResult, error) {
	name, _ := args["name"].(string)

	pending := statex.PendingRequestFrom(data)
	pending["customer_name"] = name

	return contractx.StepResult{
		Response: fmt.Sprintf("Thank you, %s. What is the address where service is needed? "+
			"Please include apartment or unit number if applicable.", name),
		DataPatch: map[string]any{statex.KeyPendingRequest: pending},
		Target: &contractx.StepTarget{
			Context: workflowx.ContextServiceRequest,
			Step:    workflowx.StepGetServiceAddress,
		},
	}, nil
}

func setServiceAddress(ctx context.Context, args map[string]any, data statex.GlobalData) (contractx.StepResult, error) {
	address, _ := args["address"].(string)

	pending := statex.PendingRequestFrom(data)
	pending["service_address"] = address

	return contractx.StepResult{
		Response: fmt.Sprintf("Got it, %s. Can you tell me about your HVAC unit? "+
			"Any details help - the brand, approximate age, or where it's located like rooftop, basement, or closet.", address),
		DataPatch: map[string]any{statex.KeyPendingRequest: pending},
		Target: &contractx.StepTarget{
			Context: workflowx.ContextServiceRequest,
			Step:    workflowx.StepGetUnitInfo,
		},
	}, nil
}

func setUnitInfo(ctx context.Context, args map[string]any, data statex.GlobalData) (contractx.StepResult, error) {
	unitInfo, _ := args["unit_info"].(string)

	pending := statex.PendingRequestFrom(data)
	pending["unit_info"] = unitInfo

	return contractx.StepResult{
		Response:  "Thanks for that information. Do you own or rent this property?",
		DataPatch: map[string]any{statex.KeyPendingRequest: pending},
		Target: &contractx.StepTarget{
			Context: workflowx.ContextServiceRequest,
			Step:    workflowx.StepGetOwnership,
		},
	}, nil
}

func setOwnership(ctx context.Context, args map[string]any, data statex.GlobalData) (contractx.StepResult, error) {
	ownership, _ := args["ownership"].(string)

	pending := statex.PendingRequestFrom(data)
	pending["ownership"] = ownership

	response := ""
	if ownership == string(intakex.OwnershipRent) {
		response = "Noted that you rent. Just so you know, you may need landlord approval for repairs, " +
			"but our technician can help coordinate that. "
	}
	response += "What's the best phone number for our dispatch to call you back?"

	return contractx.StepResult{
		Response:  response,
		DataPatch: map[string]any{statex.KeyPendingRequest: pending},
		Target: &contractx.StepTarget{
			Context: workflowx.ContextServiceRequest,
			Step:    workflowx.StepGetCallbackNumbers,
		},
	}, nil
}

func setCallbackNumbers(ctx context.Context, args map[string]any, data statex.GlobalData) (contractx.StepResult, error) {
	primary, _ := args["primary"].(string)
	alternate, _ := args["alternate"].(string)

	pending := statex.PendingRequestFrom(data)
	pending["callback_primary"] = primary
	if alternate != "" {
		pending["callback_alternate"] = alternate
	}

	response := fmt.Sprintf("I have %s as your callback number", primary)
	if alternate != "" {
		response += fmt.Sprintf(" with %s as a backup", alternate)
	}
	response += ". Now, please describe the problem you're experiencing with your system."

	return contractx.StepResult{
		Response:  response,
		DataPatch: map[string]any{statex.KeyPendingRequest: pending},
		Target: &contractx.StepTarget{
			Context: workflowx.ContextServiceRequest,
			Step:    workflowx.StepGetIssueDescription,
		},
	}, nil
}

func setIssueDescription(ctx context.Context, args map[string]any, data statex.GlobalData) (contractx.StepResult, error) {
	description, _ := args["description"].(string)

	pending := statex.PendingRequestFrom(data)
	pending["issue_description"] = description

	name, _ := pending["customer_name"].(string)
	if name == "" {
		name = "Customer"
	}
	address, _ := pending["service_address"].(string)
	issueType := "Air conditioning"
	if pending["issue_type"] == string(intakex.IssueHeatingRepair) {
		issueType = "Heating"
	}
	urgency := "Non-emergency"
	if emergency, _ := pending["is_emergency"].(bool); emergency {
		urgency = "Emergency"
	}
	primary, _ := pending["callback_primary"].(string)

	summary := fmt.Sprintf(
		"Let me confirm your service request: %s, at %s. %s issue - %s. "+
			"We'll call you back at %s. Issue: %s. Is all of this correct?",
		name, address, issueType, urgency, primary, description,
	)

	return contractx.StepResult{
		Response:  summary,
		DataPatch: map[string]any{statex.KeyPendingRequest: pending},
		Target: &contractx.StepTarget{
			Context: workflowx.ContextConfirmation,
			Step:    workflowx.StepConfirm,
		},
	}, nil
}

// confirmRequest validates the accumulated pending record, builds the final
// intake request and the submission event, and clears the scratch data. It
// sets no target: the session is terminal and awaits call teardown.
func confirmRequest(ctx context.Context, args map[string]any, data statex.GlobalData) (contractx.StepResult, error) {
	pending, err := intakex.PendingFromData(statex.PendingRequestFrom(data))
	if err != nil {
		return contractx.StepResult{}, err
	}
	if err := pending.Validate(); err != nil {
		return contractx.StepResult{}, err
	}

	// CreatedAt is stamped by the repository on create; handlers stay
	// side-effect-free and clock-free.
	req := pending.ToRequest(intakex.NewTicketID(), time.Time{})

	urgencyMsg := "shortly"
	if req.IsEmergency {
		urgencyMsg = "as soon as possible"
	}

	return contractx.StepResult{
		Response: fmt.Sprintf(
			"Your service request has been submitted. Your ticket number is %s. "+
				"Our dispatch team will call you back %s. Is there anything else I can help you with?",
			sayDigits(req.ID), urgencyMsg,
		),
		DataPatch: map[string]any{
			statex.KeyPendingRequest: map[string]any{},
			statex.KeyLastRequestID:  req.ID,
		},
		Intake: req,
		Event:  &eventsx.Event{Type: eventsx.TypeRequestSubmitted, Request: req},
	}, nil
}

func cancelFlow(ctx context.Context, args map[string]any, data statex.GlobalData) (contractx.StepResult, error) {
	return contractx.StepResult{
		Response:  "No problem. Is there anything else I can help you with?",
		DataPatch: map[string]any{statex.KeyPendingRequest: map[string]any{}},
		Target: &contractx.StepTarget{
			Context: workflowx.ContextGreeting,
			Step:    workflowx.StepWelcome,
		},
	}, nil
}

var digitWords = map[rune]string{
	'0': "zero", '1': "one", '2': "two", '3': "three", '4': "four",
	'5': "five", '6': "six", '7': "seven", '8': "eight", '9': "nine",
}

// sayDigits renders a ticket number digit by digit for TTS,
// e.g. "123456" -> "one two three four five six".
func sayDigits(number string) string {
	words := make([]string, 0, len(number))
	for _, r := range number {
		if w, ok := digitWords[r]; ok {
			words = append(words, w)
			continue
		}
		words = append(words, string(r))
	}
	return strings.Join(words, " ")
}

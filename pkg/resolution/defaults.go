package resolution

import "github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"

// DefaultSchemaVersion is the knowledge base schema the built-in data uses.
const DefaultSchemaVersion = "1.2.0"

// DefaultKnowledge returns the built-in rule table and templates.
func DefaultKnowledge() KnowledgeData {
	generic := genericTemplate()
	return KnowledgeData{
		SchemaVersion: DefaultSchemaVersion,
		Rules:         defaultRules(),
		Templates:     defaultTemplates(),
		Generic:       &generic,
	}
}

// Rule order matters: specific phrases come before the general keywords of
// the same or a neighbouring category.
func defaultRules() []Rule {
	return []Rule{
		{CategoryDriverBehavior, "misconduct", []string{
			"rude driver", "driver was rude", "driver is rude", "misbehaved", "misbehaviour", "misbehavior",
			"harassed", "harassment", "unsafe driving", "rash driving", "drunk driver", "abusive",
			"മോശമായി പെരുമാറി", "അപമര്യാദ",
		}, 0.9},
		{CategoryBooking, "driver_no_show", []string{
			"driver did not arrive", "driver didn't arrive", "driver never came", "driver did not come",
			"driver didn't come", "driver not arrived", "no show",
			"ഡ്രൈവർ വന്നില്ല",
		}, 0.9},
		{CategoryPayment, "failed_transaction", []string{
			"payment failed", "transaction failed", "payment declined", "payment not going through",
			"upi failed", "card declined",
			"പേയ്മെന്റ് പരാജയപ്പെട്ടു", "പണമടയ്ക്കൽ പരാജയപ്പെട്ടു", "പേയ്മെന്റ് നടന്നില്ല",
		}, 0.9},
		{CategoryPayment, "double_charge", []string{
			"charged twice", "double charged", "double charge", "deducted twice", "charged two times",
			"രണ്ടു തവണ",
		}, 0.9},
		{CategoryCancellation, "refund_request", []string{
			"cancel", "cancelled", "canceled", "cancellation", "refund",
			"റദ്ദാക്കി", "റദ്ദാക്കണം", "റീഫണ്ട്",
		}, 0.85},
		{CategoryBilling, "incorrect_fare", []string{
			"overcharged", "wrong fare", "incorrect fare", "fare is too high", "extra charge", "extra amount",
			"bill", "invoice", "receipt",
			"ബിൽ", "കൂടുതൽ തുക", "അധിക ചാർജ്",
		}, 0.85},
		{CategoryBooking, "modification", []string{
			"change booking", "modify booking", "reschedule", "change pickup", "change drop",
			"ബുക്കിംഗ് മാറ്റ",
		}, 0.8},
		{CategoryBooking, "not_confirmed", []string{
			"booking", "booked", "reservation", "not confirmed",
			"ബുക്കിംഗ്",
		}, 0.75},
		{CategoryCultural, "language_preference", []string{
			"malayalam", "speak in", "language", "translate",
			"മലയാള", "ഭാഷ",
		}, 0.8},
		{CategoryPayment, "general", []string{
			"payment", "upi", "wallet", "paid",
			"പേയ്മെന്റ്", "പണം",
		}, 0.7},
		{CategoryTechnical, "app_issue", []string{
			"app crash", "app crashed", "app is not working", "app not working", "crash", "crashing",
			"login", "otp", "error", "bug", "not loading", "freeze",
			"ആപ്പ്",
		}, 0.75},
	}
}

func remote(service, operation string) Action {
	return Action{Kind: ActionRemoteCall, RemoteCall: &RemoteCall{Service: service, Operation: operation}}
}

func persist(entity, field string, value any) Action {
	return Action{Kind: ActionPersistenceUpdate, Persistence: &PersistenceUpdate{Entity: entity, Field: field, Value: value}}
}

func notify(message, local string) Action {
	n := &Notification{Channel: "sms", Message: message}
	if local != "" {
		n.Messages = map[string]string{"ml": local}
	}
	return Action{Kind: ActionNotification, Notification: n}
}

func refund(mode string, percent float64, reason string) Action {
	return Action{Kind: ActionRefund, TimeoutMS: 10000, Refund: &Refund{Mode: mode, Percent: percent, Reason: reason}}
}

func escalate(queue, reason string) Action {
	return Action{Kind: ActionEscalation, Escalation: &Escalation{Queue: queue, Reason: reason, Priority: "normal"}}
}

func culturalReply(note, english, malayalam string) Action {
	return Action{Kind: ActionCulturalResponse, CulturalResponse: &CulturalResponse{
		Languages: []string{"ml"},
		Messages:  map[string]string{"en": english, "ml": malayalam},
		Note:      note,
	}}
}

func step(id, description string, action Action, fallbacks ...Action) Step {
	return Step{ID: id, Description: description, Action: action, Fallbacks: fallbacks}
}

func defaultTemplates() []Template {
	paymentNotify := notify(
		"Your failed payment has been reversed. The amount will reach your account in 3-5 working days.",
		"പരാജയപ്പെട്ട പേയ്മെന്റ് തിരികെ നൽകി. 3-5 പ്രവൃത്തി ദിവസങ്ങൾക്കുള്ളിൽ തുക നിങ്ങളുടെ അക്കൗണ്ടിൽ എത്തും.",
	)
	refundFallbacks := []Action{
		persist("payment", "refund_status", "pending_manual"),
		notify("Your refund is queued and will be processed by our payments team.", "നിങ്ങളുടെ റീഫണ്ട് ക്യൂവിലാണ്."),
	}
	verifyPayment := step("verify_transaction", "Verify the transaction with the payment gateway",
		remote("payments", "verify_transaction"), remote("payments", "lookup_ledger"))

	return []Template{
		{
			Category:    CategoryPayment,
			Subcategory: "failed_transaction",
			Title:       "Failed payment reversal",
			TitleLocal:  map[string]string{"ml": "പരാജയപ്പെട്ട പേയ്മെന്റ് തിരികെ നൽകൽ"},
			Triggers:    []string{"payment failed", "transaction failed"},
			Steps: []Step{
				verifyPayment,
				step("issue_refund", "Refund the failed transaction",
					refund("full", 100, "failed transaction"), refundFallbacks...),
				step("notify_customer", "Tell the customer the payment was reversed", paymentNotify),
				step("cultural_ack", "Acknowledge in the customer's language",
					culturalReply("Acknowledged in Malayalam with respectful address",
						"We are sorry for the trouble with your payment.",
						"നിങ്ങളുടെ പേയ്മെന്റിൽ ഉണ്ടായ ബുദ്ധിമുട്ടിന് ഞങ്ങൾ ക്ഷമ ചോദിക്കുന്നു.")),
			},
			SuccessCriteria:   []string{"refund issued", "customer notified"},
			AverageDurationMS: 4000,
			Variants: map[api.Situation][]Step{
				api.SituationFestivalPeriod: {
					verifyPayment,
					step("issue_refund", "Priority refund during the festival period",
						refund("full", 100, "festival priority refund"), refundFallbacks...),
					step("notify_customer", "Tell the customer the payment was reversed", paymentNotify),
					step("festival_greeting", "Send a festival greeting with the confirmation",
						culturalReply("Festival greeting included with the refund confirmation",
							"Wishing you a joyful festival. Your refund is on its way.",
							"ഉത്സവാശംസകൾ! നിങ്ങളുടെ റീഫണ്ട് ഉടൻ എത്തും.")),
				},
			},
		},
		{
			Category:    CategoryPayment,
			Subcategory: "double_charge",
			Title:       "Duplicate charge refund",
			TitleLocal:  map[string]string{"ml": "ഇരട്ട ചാർജ് റീഫണ്ട്"},
			Steps: []Step{
				step("find_duplicate", "Find the duplicate charge", remote("payments", "find_duplicates")),
				step("refund_duplicate", "Refund the duplicate charge",
					refund("full", 100, "duplicate charge"), persist("payment", "refund_status", "pending_manual")),
				step("notify_customer", "Confirm the refund to the customer", notify(
					"We found a duplicate charge on your ride and refunded it.",
					"നിങ്ങളുടെ യാത്രയിൽ ഇരട്ട ചാർജ് കണ്ടെത്തി, അത് തിരികെ നൽകി.")),
			},
			AverageDurationMS: 3500,
		},
		{
			Category:    CategoryPayment,
			Subcategory: "general",
			Title:       "Payment status check",
			TitleLocal:  map[string]string{"ml": "പേയ്മെന്റ് നില പരിശോധന"},
			Steps: []Step{
				step("payment_status", "Look up the latest payment status", remote("payments", "status")),
				step("notify_customer", "Share the payment status", notify(
					"We checked your payment. Details have been sent to your registered number.",
					"നിങ്ങളുടെ പേയ്മെന്റ് പരിശോധിച്ചു. വിവരങ്ങൾ രജിസ്റ്റർ ചെയ്ത നമ്പറിലേക്ക് അയച്ചു.")),
			},
			AverageDurationMS: 1500,
		},
		{
			Category:    CategoryBilling,
			Subcategory: "incorrect_fare",
			Title:       "Fare correction",
			TitleLocal:  map[string]string{"ml": "നിരക്ക് തിരുത്തൽ"},
			Steps: []Step{
				step("recalculate_fare", "Recalculate the fare from the trip log", remote("fares", "recalculate")),
				step("refund_difference", "Refund the difference",
					refund("partial", 0, "fare correction"), persist("billing", "adjustment_status", "pending_review")),
				step("send_receipt", "Send the corrected receipt", notify(
					"Your fare was corrected and a revised receipt has been sent.",
					"നിങ്ങളുടെ നിരക്ക് തിരുത്തി, പുതിയ രസീത് അയച്ചു.")),
			},
			AverageDurationMS: 3000,
		},
		{
			Category:    CategoryCancellation,
			Subcategory: "refund_request",
			Title:       "Cancellation refund",
			TitleLocal:  map[string]string{"ml": "റദ്ദാക്കൽ റീഫണ്ട്"},
			Steps: []Step{
				step("check_policy", "Check the cancellation policy for the booking", remote("bookings", "cancellation_policy")),
				step("issue_refund", "Refund according to policy",
					refund("policy", 0, "cancellation"), persist("booking", "refund_status", "pending_manual")),
				step("notify_customer", "Confirm cancellation and refund", notify(
					"Your booking is cancelled and the refund has been initiated.",
					"നിങ്ങളുടെ ബുക്കിംഗ് റദ്ദാക്കി, റീഫണ്ട് ആരംഭിച്ചു.")),
			},
			AverageDurationMS: 3000,
			Variants: map[api.Situation][]Step{
				api.SituationMonsoon: {
					step("issue_refund", "Full refund with monsoon fee waiver",
						refund("full", 100, "monsoon waiver"), persist("booking", "refund_status", "pending_manual")),
					step("notify_customer", "Confirm cancellation and waiver", notify(
						"Your booking is cancelled. Cancellation fees are waived during the monsoon.",
						"നിങ്ങളുടെ ബുക്കിംഗ് റദ്ദാക്കി. മഴക്കാലത്ത് റദ്ദാക്കൽ ഫീസ് ഒഴിവാക്കിയിരിക്കുന്നു.")),
				},
			},
		},
		{
			Category:    CategoryBooking,
			Subcategory: "driver_no_show",
			Title:       "Driver no-show recovery",
			TitleLocal:  map[string]string{"ml": "ഡ്രൈവർ എത്താത്തതിനുള്ള പരിഹാരം"},
			Steps: []Step{
				step("reassign_driver", "Reassign the nearest available driver", remote("dispatch", "reassign_driver"),
					notify("We could not find another driver right now. Please rebook at no extra cost.",
						"ഇപ്പോൾ മറ്റൊരു ഡ്രൈവറെ ലഭ്യമല്ല. അധിക ചാർജില്ലാതെ വീണ്ടും ബുക്ക് ചെയ്യുക.")),
				step("flag_booking", "Raise the booking priority", persist("booking", "priority", "high")),
				step("notify_customer", "Share the new driver details", notify(
					"A new driver has been assigned. Details are in the app.",
					"പുതിയ ഡ്രൈവറെ നിയോഗിച്ചു. വിവരങ്ങൾ ആപ്പിൽ ലഭ്യമാണ്.")),
			},
			AverageDurationMS: 5000,
			Variants: map[api.Situation][]Step{
				api.SituationPeakHours: {
					step("reassign_driver", "Reassign with surge exemption", Action{
						Kind: ActionRemoteCall,
						RemoteCall: &RemoteCall{
							Service:   "dispatch",
							Operation: "reassign_driver",
							Params:    map[string]any{"surge_exempt": true},
						},
					}, escalate("dispatch", "no driver available at peak hours")),
					step("notify_customer", "Share the new driver details", notify(
						"A new driver has been assigned without surge pricing.",
						"സർജ് നിരക്കില്ലാതെ പുതിയ ഡ്രൈവറെ നിയോഗിച്ചു.")),
				},
			},
		},
		{
			Category:    CategoryBooking,
			Subcategory: "modification",
			Title:       "Booking modification",
			TitleLocal:  map[string]string{"ml": "ബുക്കിംഗ് മാറ്റം"},
			Steps: []Step{
				step("modify_booking", "Apply the requested change", remote("bookings", "modify")),
				step("notify_customer", "Confirm the change", notify(
					"Your booking has been updated.", "നിങ്ങളുടെ ബുക്കിംഗ് പുതുക്കി.")),
			},
			AverageDurationMS: 2000,
		},
		{
			Category:    CategoryBooking,
			Subcategory: "not_confirmed",
			Title:       "Booking confirmation",
			TitleLocal:  map[string]string{"ml": "ബുക്കിംഗ് സ്ഥിരീകരണം"},
			Steps: []Step{
				step("booking_status", "Check the booking state", remote("bookings", "status")),
				step("confirm_booking", "Confirm the pending booking", remote("bookings", "confirm"),
					escalate("bookings", "booking could not be confirmed")),
				step("notify_customer", "Send the confirmation", notify(
					"Your booking is confirmed.", "നിങ്ങളുടെ ബുക്കിംഗ് സ്ഥിരീകരിച്ചു.")),
			},
			AverageDurationMS: 2500,
		},
		{
			Category:    CategoryTechnical,
			Subcategory: "app_issue",
			Title:       "App troubleshooting",
			Steps: []Step{
				step("session_health", "Check the customer's app session", remote("diagnostics", "session_health")),
				step("send_troubleshooting", "Send troubleshooting steps", notify(
					"Please update the app and sign in again. If the problem continues, reply to this message.", ""),
					escalate("tech-support", "troubleshooting message could not be delivered")),
			},
			AverageDurationMS: 2000,
		},
		{
			Category:    CategoryCultural,
			Subcategory: "language_preference",
			Title:       "Language preference update",
			TitleLocal:  map[string]string{"ml": "ഭാഷാ മുൻഗണന പുതുക്കൽ"},
			Steps: []Step{
				step("store_preference", "Store the preferred language", persist("customer", "preferred_language", "detected")),
				step("cultural_reply", "Reply in the preferred language", culturalReply(
					"Conversation switched to Malayalam",
					"We will talk to you in your preferred language from now on.",
					"ഇനി മുതൽ ഞങ്ങൾ നിങ്ങളോട് മലയാളത്തിൽ സംസാരിക്കും.")),
			},
			AverageDurationMS: 1000,
		},
	}
}

func genericTemplate() Template {
	return Template{
		Title:      "Acknowledge and escalate",
		TitleLocal: map[string]string{"ml": "സ്വീകരിച്ച് കൈമാറുക"},
		Steps: []Step{
			step("acknowledge", "Acknowledge the issue", notify(
				"We have received your request and a specialist will contact you shortly.",
				"നിങ്ങളുടെ അഭ്യർത്ഥന ലഭിച്ചു. ഒരു വിദഗ്ധൻ ഉടൻ ബന്ധപ്പെടും.")),
			step("escalate", "Escalate to a human agent", escalate("general", "no matching resolution template")),
		},
		AverageDurationMS: 1000,
	}
}

package intake

import (
	"fmt"
	"time"

	"github.com/brightlawyers/courier/internal/models"
)

// User-facing intake messages. The conversational flow never exposes raw
// internal errors; every failure path degrades to one of these templates.
const (
	// PromptAllFields opens the bulk capture path, asking for the four
	// required fields in a single message.
	PromptAllFields = "📅 *Great! Let's book your FREE consultation*\n\n" +
		"📋 *To schedule your appointment, please share:*\n\n" +
		"1️⃣ *Full name* 📝\n" +
		"2️⃣ *Contact number* 📞\n" +
		"3️⃣ *Type of consultation* ⚖️\n" +
		"(e.g. Labor, Family, Real estate, Criminal)\n" +
		"4️⃣ *Preferred date and time* ⏰\n\n" +
		"💬 *Example:*\n\"Jane Doe, 300-123-4567, Labor, tomorrow 10 AM\"\n\n" +
		"📝 Please send everything in a single message:"

	// PromptIncomplete re-asks for the bulk fields without changing state.
	PromptIncomplete = "⚠️ *Incomplete information*\n\n" +
		"Please provide all the required details:\n\n" +
		"📝 *Correct format:*\n\"Full Name, Phone, Type of Consultation, Date and Time\"\n\n" +
		"💬 *Example:*\n\"Jane Doe, 300-123-4567, Labor, tomorrow 10 AM\"\n\n" +
		"Try again with all four:"

	// MsgCancelled acknowledges an aborted flow.
	MsgCancelled = "❌ Booking cancelled. If you change your mind, just say \"I want to book an appointment\"."

	// MsgFlowError resets a broken flow with a generic apology.
	MsgFlowError = "❌ Something went wrong with the booking. Would you like to book an appointment? Just reply \"yes\" to start over."

	// MsgSavedWithIssue is the soft degradation when finalize hits a
	// technical problem: the data is kept, the user is not shown an error.
	MsgSavedWithIssue = "✅ *Appointment registered!*\n\n" +
		"📝 We have saved all your details.\n\n" +
		"⚠️ _Technical note: there was a minor issue with the digital calendar, but your appointment is confirmed._\n\n" +
		"📞 *Our team will contact you shortly.*"

	// MsgWelcome greets a contact on their very first message.
	MsgWelcome = "👋 *Welcome to Bright Lawyers!*\n\n" +
		"I'm the virtual assistant and I can help you with:\n\n" +
		"📅 Booking a *FREE consultation*\n" +
		"🕐 Office hours and location\n" +
		"💰 Service pricing\n\n" +
		"How can I help you today? If you'd like to book, just say \"appointment\"."

	// MsgForwardReceipt acknowledges a registered client whose message was
	// filed on their case.
	MsgForwardReceipt = "✅ Your message has been forwarded to your lawyer. " +
		"You will be contacted through the platform or by phone shortly."

	// MsgForwardError is shown when filing a registered client message
	// fails; the contact is told to reach out directly.
	MsgForwardError = "⚠️ We couldn't register your message right now. " +
		"Please call us at +57 300 123 4567 so your lawyer gets it directly."

	// MsgGenAIFallback covers generative client failures.
	MsgGenAIFallback = "🙏 Sorry, I didn't quite get that. " +
		"Would you like to book a *FREE consultation* with one of our lawyers? Just say \"appointment\"."

	// MsgGenericNudge is the reply when no generative client is configured.
	MsgGenericNudge = "Thanks for your message! 📩 " +
		"For anything specific, the fastest path is a *FREE consultation*. Say \"appointment\" and I'll set it up."

	// Sequential path prompts, one per collected field.
	PromptName        = "📝 What is your full name?"
	PromptPhone       = "📞 What phone number can we reach you at?"
	PromptArea        = "⚖️ What type of consultation do you need? (e.g. Labor, Family, Criminal)"
	PromptDescription = "🗒️ Briefly describe your situation:"
	PromptDateTime    = "⏰ What date and time would suit you? (e.g. \"tomorrow 10 AM\")"
)

// confirmationMessage summarizes the captured fields after a successful
// finalize. It is sent regardless of the calendar booking outcome.
func confirmationMessage(fields map[models.FieldName]string) string {
	return fmt.Sprintf("🎉 *APPOINTMENT BOOKED!*\n\n"+
		"✅ *Your FREE consultation:*\n\n"+
		"👤 *Client:* %s\n"+
		"📞 *Phone:* %s\n"+
		"⚖️ *Consultation:* %s\n"+
		"📅 *Preferred date:* %s\n"+
		"⏱️ *Duration:* 30 minutes at NO COST\n\n"+
		"📞 *Next steps:*\n"+
		"🔸 Our team will contact you within the next 2 hours\n"+
		"🔸 We will confirm the final date and time\n"+
		"🔸 You will receive the location or meeting link\n"+
		"🔸 Have any documents related to your case ready\n\n"+
		"📱 *Need changes?* Contact us: +57 300 123 4567\n\n"+
		"🏛️ *Thank you for trusting Bright Lawyers!*",
		fields[models.FieldNameFullName],
		fields[models.FieldNamePhone],
		fields[models.FieldNameArea],
		fields[models.FieldNameDateTime])
}

// confirmSummary asks the contact to confirm the collected fields on the
// sequential path.
func confirmSummary(fields map[models.FieldName]string, resolved time.Time) string {
	return fmt.Sprintf("📋 *Please confirm your appointment:*\n\n"+
		"👤 %s\n📞 %s\n⚖️ %s\n📅 %s (%s)\n\n"+
		"Reply *yes* to confirm or *no* to start over.",
		fields[models.FieldNameFullName],
		fields[models.FieldNamePhone],
		fields[models.FieldNameArea],
		fields[models.FieldNameDateTime],
		resolved.Format("Mon 02 Jan 15:04"))
}

package catalog

// defaultIcon is used when a custom section is created without one.
const defaultIcon = "📁"

type defaultSection struct {
	icon        string
	name        string
	description string
}

// defaultSections is the built-in catalog seeded for every new family, in
// display order.
var defaultSections = []defaultSection{
	{
		icon:        "👤",
		name:        "Personal Information",
		description: "Full legal name, SSN, birth certificate location, driver's license, passport details",
	},
	{
		icon:        "👨‍👩‍👧‍👦",
		name:        "Family & Contacts",
		description: "Family member details, emergency contacts, doctors, attorneys, accountant, key people to notify",
	},
	{
		icon:        "🏥",
		name:        "Medical Information",
		description: "Health conditions, medications, allergies, doctors, medical history, healthcare proxy, DNR wishes",
	},
	{
		icon:        "🐕",
		name:        "Pet Information",
		description: "Pet names, vet info, medications, care instructions, who should take them",
	},
	{
		icon:        "🏠",
		name:        "Property & Home",
		description: "Home address, mortgage info, property tax, HOA, security codes, where keys are, maintenance contacts",
	},
	{
		icon:        "💰",
		name:        "Financial Accounts",
		description: "Bank accounts, investment accounts, retirement accounts, debts, who to contact",
	},
	{
		icon:        "💳",
		name:        "Credit Cards",
		description: "Card details (last 4 digits), issuers, how to cancel, autopay subscriptions on each",
	},
	{
		icon:        "🛡️",
		name:        "Insurance",
		description: "Health, life, auto, home, disability — policy numbers, agents, beneficiaries",
	},
	{
		icon:        "🔐",
		name:        "Passwords & Digital Accounts",
		description: "Password manager master password, email accounts, social media, important online accounts",
	},
	{
		icon:        "📄",
		name:        "Legal Documents",
		description: "Will location, trust documents, power of attorney, birth/marriage/death certificates, titles, deeds",
	},
	{
		icon:        "💼",
		name:        "Employment & Income",
		description: "Employer info, HR contacts, benefits, pension, unvested stock, final paycheck instructions",
	},
	{
		icon:        "🔧",
		name:        "House How-To's",
		description: "How to work the thermostat, water shutoff, circuit breaker, lawn care schedule, maintenance tips",
	},
	{
		icon:        "📝",
		name:        "Final Wishes",
		description: "Funeral preferences, burial vs cremation, obituary notes, people to notify, religious preferences",
	},
	{
		icon:        "💌",
		name:        "Letters & Messages",
		description: "Personal letters to family members to be read after death",
	},
	{
		icon:        "📋",
		name:        "Additional Notes",
		description: "Anything else that doesn't fit above",
	},
}

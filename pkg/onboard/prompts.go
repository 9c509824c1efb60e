package onboard

// Onboarding prompts are deterministic so the gate never waits on a model.
// The district prompt doubles as the first-contact introduction.
var prompts = map[string]map[Level]string{
	"Bengali": {
		LevelDistrict: "নমস্কার! আমি সহায়ক। কাজ খোঁজা, ন্যায্য মজুরি আর মহিলা দলের খবর দিতে পারি। আপনার জেলা বেছে নিন:",
		LevelBlock:    "ধন্যবাদ! এবার আপনার ব্লক বেছে নিন:",
		LevelVillage:  "আর একটা ধাপ। আপনার গ্রাম বেছে নিন:",
	},
	"Hindi": {
		LevelDistrict: "नमस्ते! मैं सहायक हूँ। काम, सही मज़दूरी और महिला समूहों की जानकारी दे सकती हूँ। अपना ज़िला चुनें:",
		LevelBlock:    "धन्यवाद! अब अपना ब्लॉक चुनें:",
		LevelVillage:  "बस एक कदम और। अपना गाँव चुनें:",
	},
	"English": {
		LevelDistrict: "Hello! I am Sahayak. I can help you find local work, check fair pay, and learn about women's groups. Please select your district:",
		LevelBlock:    "Thank you! Now select your block:",
		LevelVillage:  "One more step. Select your village:",
	},
}

var unavailable = map[string]string{
	"Bengali": "এই মুহূর্তে তালিকা পাওয়া যাচ্ছে না। একটু পরে আবার চেষ্টা করুন।",
	"Hindi":   "अभी सूची उपलब्ध नहीं है। थोड़ी देर बाद फिर कोशिश करें।",
	"English": "The list is not available right now. Please try again in a little while.",
}

func unavailablePrompt(language string) string {
	if text, ok := unavailable[language]; ok {
		return text
	}
	return unavailable["English"]
}

func prompt(language string, level Level) string {
	if byLevel, ok := prompts[language]; ok {
		if text, ok := byLevel[level]; ok {
			return text
		}
	}
	return prompts["English"][level]
}

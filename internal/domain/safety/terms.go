package safety

// Default term lists and allowlists for the rule cascade. All matching
// is done on normalized names, so casing and delimiters in these lists
// are irrelevant; keep them lower-case single-space for readability.

// explicitNameTerms flag a model outright when found in its name on a
// word boundary. A hit here is conclusive.
var explicitNameTerms = []string{
	"nsfw",
	"nude",
	"nudes",
	"nudity",
	"naked",
	"porn",
	"pornographic",
	"hentai",
	"xxx",
	"erotic",
	"erotica",
	"sex",
	"sexy",
	"lewd",
	"explicit",
	"uncensored",
	"fetish",
	"bdsm",
	"topless",
	"not safe for work",
}

// safetyToolTerms mark a model as safety tooling when co-occurring with
// "nsfw" in its name. Detection tools must not flag themselves.
var safetyToolTerms = []string{
	"detector",
	"detection",
	"classifier",
	"classification",
	"filter",
	"filtering",
	"moderation",
	"moderator",
	"checker",
}

// trustedProviders are organizations whose catalog entries are accepted
// without scoring. Matched case-insensitively on the provider field.
var trustedProviders = []string{
	"openai",
	"anthropic",
	"google",
	"google deepmind",
	"meta",
	"meta llama",
	"microsoft",
	"mistral ai",
	"mistralai",
	"stability ai",
	"stabilityai",
	"cohere",
	"nvidia",
	"deepseek",
	"qwen",
	"alibaba",
	"ai21 labs",
	"eleutherai",
	"bigscience",
	"tiiuae",
	"databricks",
	"xai",
	"hugging face",
}

// generalFamilyTerms match well-known general-purpose model families:
// base language models, general image/video/audio generators and
// utility models. These can produce unsafe output in principle but are
// not themselves unsafe.
var generalFamilyTerms = []string{
	"gpt",
	"llama",
	"mistral",
	"mixtral",
	"gemma",
	"gemini",
	"qwen",
	"phi",
	"falcon",
	"claude",
	"deepseek",
	"bert",
	"roberta",
	"t5",
	"bart",
	"bloom",
	"stable diffusion",
	"sdxl",
	"flux",
	"dall e",
	"imagen",
	"midjourney",
	"controlnet",
	"whisper",
	"wav2vec",
	"musicgen",
	"bark",
	"clip",
	"vit",
	"vae",
	"resnet",
	"yolo",
	"upscaler",
	"esrgan",
	"embedding",
	"embeddings",
	"encoder",
	"reranker",
	"tokenizer",
}

// highRiskSources are catalogs whose descriptions are worth scanning.
// Description keywords are only scored for these origins to bound the
// false-positive cost on mainstream catalogs.
var highRiskSources = []string{
	"civitai",
	"tensorart",
	"seaart",
	"pixai",
}

// descriptionKeywords contribute partial score when found in the
// description of a record from a high-risk source.
var descriptionKeywords = []string{
	"nsfw",
	"nudity",
	"explicit content",
	"adult content",
	"pornographic",
	"hentai",
	"erotic",
	"uncensored",
}

// explicitTags flag via exact normalized tag match. Terms shorter than
// minTagTermLength are excluded to avoid incidental collisions.
var explicitTags = []string{
	"nsfw",
	"nude",
	"nudity",
	"porn",
	"hentai",
	"erotic",
	"explicit",
	"uncensored",
	"fetish",
	"adult only",
	"rating explicit",
}

// Scoring constants for the weighted rule.
const (
	minTagTermLength         = 4
	descriptionKeywordWeight = 0.4
	explicitTagWeight        = 1.0
	nsfwScoreThreshold       = 1.0
)

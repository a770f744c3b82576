package extract

// brandEntry maps the canonical catalog brand name to its Latin spellings
// and localized (Cyrillic) aliases. Multi-word aliases are matched before
// single-word ones, longest first.
type brandEntry struct {
	Canonical string
	Latin     []string
	Localized []string
}

var brandVocab = []brandEntry{
	{Canonical: "Toyota", Latin: []string{"toyota"}, Localized: []string{"тойота", "таёта"}},
	{Canonical: "BMW", Latin: []string{"bmw"}, Localized: []string{"бмв", "бэха"}},
	{Canonical: "Mercedes-Benz", Latin: []string{"mercedes-benz", "mercedes benz", "mercedes"}, Localized: []string{"мерседес", "мерс"}},
	{Canonical: "Audi", Latin: []string{"audi"}, Localized: []string{"ауди"}},
	{Canonical: "Volkswagen", Latin: []string{"volkswagen", "vw"}, Localized: []string{"фольксваген"}},
	{Canonical: "Honda", Latin: []string{"honda"}, Localized: []string{"хонда"}},
	{Canonical: "Nissan", Latin: []string{"nissan"}, Localized: []string{"ниссан"}},
	{Canonical: "Mazda", Latin: []string{"mazda"}, Localized: []string{"мазда"}},
	{Canonical: "Mitsubishi", Latin: []string{"mitsubishi"}, Localized: []string{"мицубиси", "митсубиси"}},
	{Canonical: "Subaru", Latin: []string{"subaru"}, Localized: []string{"субару"}},
	{Canonical: "Suzuki", Latin: []string{"suzuki"}, Localized: []string{"сузуки"}},
	{Canonical: "Lexus", Latin: []string{"lexus"}, Localized: []string{"лексус"}},
	{Canonical: "Infiniti", Latin: []string{"infiniti"}, Localized: []string{"инфинити"}},
	{Canonical: "Hyundai", Latin: []string{"hyundai"}, Localized: []string{"хендай", "хундай", "хёндай"}},
	{Canonical: "Kia", Latin: []string{"kia"}, Localized: []string{"киа"}},
	{Canonical: "Ford", Latin: []string{"ford"}, Localized: []string{"форд"}},
	{Canonical: "Chevrolet", Latin: []string{"chevrolet"}, Localized: []string{"шевроле"}},
	{Canonical: "Opel", Latin: []string{"opel"}, Localized: []string{"опель"}},
	{Canonical: "Skoda", Latin: []string{"skoda"}, Localized: []string{"шкода"}},
	{Canonical: "Renault", Latin: []string{"renault"}, Localized: []string{"рено"}},
	{Canonical: "Peugeot", Latin: []string{"peugeot"}, Localized: []string{"пежо"}},
	{Canonical: "Citroen", Latin: []string{"citroen"}, Localized: []string{"ситроен"}},
	{Canonical: "Volvo", Latin: []string{"volvo"}, Localized: []string{"вольво"}},
	{Canonical: "Porsche", Latin: []string{"porsche"}, Localized: []string{"порше"}},
	{Canonical: "Land Rover", Latin: []string{"land rover", "range rover"}, Localized: []string{"лэнд ровер", "ленд ровер", "рендж ровер"}},
	{Canonical: "Alfa Romeo", Latin: []string{"alfa romeo"}, Localized: []string{"альфа ромео"}},
	{Canonical: "Great Wall", Latin: []string{"great wall"}, Localized: []string{"грейт вол"}},
	{Canonical: "LADA", Latin: []string{"lada"}, Localized: []string{"лада", "ваз", "жигули"}},
	{Canonical: "UAZ", Latin: []string{"uaz"}, Localized: []string{"уаз"}},
	{Canonical: "Geely", Latin: []string{"geely"}, Localized: []string{"джили"}},
	{Canonical: "Haval", Latin: []string{"haval"}, Localized: []string{"хавал", "хавейл"}},
	{Canonical: "Chery", Latin: []string{"chery"}, Localized: []string{"чери"}},
	{Canonical: "Exeed", Latin: []string{"exeed"}, Localized: []string{"эксид"}},
	{Canonical: "Changan", Latin: []string{"changan"}, Localized: []string{"чанган"}},
}

// bodyTypeVocab maps localized and English body-type keywords to the
// canonical catalog labels. Keys are roots; inflected forms are generated
// at table build time.
var bodyTypeVocab = map[string]string{
	"седан":       "Седан",
	"sedan":       "Седан",
	"хэтчбек":     "Хэтчбек",
	"хетчбек":     "Хэтчбек",
	"hatchback":   "Хэтчбек",
	"универсал":   "Универсал",
	"wagon":       "Универсал",
	"кроссовер":   "Кроссовер",
	"crossover":   "Кроссовер",
	"внедорожник": "Внедорожник",
	"джип":        "Внедорожник",
	"suv":         "Внедорожник",
	"купе":        "Купе",
	"coupe":       "Купе",
	"минивэн":     "Минивэн",
	"минивен":     "Минивэн",
	"minivan":     "Минивэн",
	"пикап":       "Пикап",
	"pickup":      "Пикап",
	"лифтбек":     "Лифтбек",
	"liftback":    "Лифтбек",
	"кабриолет":   "Кабриолет",
	"cabriolet":   "Кабриолет",
	"convertible": "Кабриолет",
}

// transmissionVocab maps localized and English transmission keywords
// (including common abbreviations) to canonical codes.
var transmissionVocab = map[string]string{
	"автомат":   "AT",
	"акпп":      "AT",
	"automatic": "AT",
	"auto":      "AT",
	"механика":  "MT",
	"мкпп":      "MT",
	"ручка":     "MT",
	"manual":    "MT",
	"вариатор":  "CVT",
	"cvt":       "CVT",
	"робот":     "AMT",
	"amt":       "AMT",
	"dsg":       "AMT",
}

// stopWordVocab lists roots never useful as description-search keywords:
// generic pronouns, verbs of asking/wanting, and generic automotive nouns.
// Inflected forms are generated at table build time.
var stopWordVocab = []string{
	"хочу", "хотим", "нужен", "нужна", "нужно", "надо",
	"ищу", "ищем", "подобрать", "подбери", "подскажи", "посоветуй",
	"купить", "куплю", "покупка", "возьму", "взять",
	"машина", "автомобиль", "авто", "тачка", "транспорт",
	"бюджет", "рубль", "деньги", "цена", "стоимость",
	"года", "году", "годов", "выпуск",
	"привет", "здравствуйте", "пожалуйста", "спасибо",
	"какой", "какая", "какую", "который", "можно", "лучше", "примерно", "около",
	"расскажи", "покажи", "есть", "вариант",
}

// yearFromCues and yearToCues are the directional words inspected
// immediately before a lone 4-digit year.
var yearFromCues = []string{"от", "с", "со", "после", "новее", "начиная", "from", "since", "after"}

var yearToCues = []string{"до", "по", "раньше", "старше", "until", "before", "till"}

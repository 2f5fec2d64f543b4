// Package cameo bundles the small static code tables used when rendering
// GDELT records for humans: CAMEO verb roots, quad classes, actor type
// codes, FIPS country codes, and the Cloud Vision likelihood scale.
//
// The tables are plain package-level maps. They are tiny, so nothing here
// is lazily initialized.
package cameo

// RootLabel returns the label of a two-digit CAMEO root code, or "" when
// unknown. Codes are strings; "01" is not 1.
func RootLabel(code string) string { return rootLabels[code] }

// QuadClassLabel names an event quad class (1..4).
func QuadClassLabel(q int) string {
	switch q {
	case 1:
		return "Verbal Cooperation"
	case 2:
		return "Material Cooperation"
	case 3:
		return "Verbal Conflict"
	case 4:
		return "Material Conflict"
	}
	return ""
}

// ActorTypeLabel names a three-letter actor type/role code.
func ActorTypeLabel(code string) string { return actorTypeLabels[code] }

// CountryName resolves a FIPS 10-4 country code.
func CountryName(fips string) string { return countryNames[fips] }

// LikelihoodName names a Cloud Vision likelihood code (-1..4) as carried
// by the visual knowledge graph's safe-search cells.
func LikelihoodName(code int) string {
	switch code {
	case -1:
		return "UNKNOWN"
	case 0:
		return "VERY_UNLIKELY"
	case 1:
		return "UNLIKELY"
	case 2:
		return "POSSIBLE"
	case 3:
		return "LIKELY"
	case 4:
		return "VERY_LIKELY"
	}
	return ""
}

var rootLabels = map[string]string{
	"01": "Make Public Statement",
	"02": "Appeal",
	"03": "Express Intent to Cooperate",
	"04": "Consult",
	"05": "Engage in Diplomatic Cooperation",
	"06": "Engage in Material Cooperation",
	"07": "Provide Aid",
	"08": "Yield",
	"09": "Investigate",
	"10": "Demand",
	"11": "Disapprove",
	"12": "Reject",
	"13": "Threaten",
	"14": "Protest",
	"15": "Exhibit Force Posture",
	"16": "Reduce Relations",
	"17": "Coerce",
	"18": "Assault",
	"19": "Fight",
	"20": "Use Unconventional Mass Violence",
}

var actorTypeLabels = map[string]string{
	"COP": "Police",
	"GOV": "Government",
	"INS": "Insurgents",
	"JUD": "Judiciary",
	"MIL": "Military",
	"OPP": "Political Opposition",
	"REB": "Rebels",
	"SEP": "Separatists",
	"SPY": "State Intelligence",
	"UAF": "Unaligned Armed Forces",
	"AGR": "Agriculture",
	"BUS": "Business",
	"CRM": "Criminals",
	"CVL": "Civilians",
	"DEV": "Development",
	"EDU": "Education",
	"ELI": "Elites",
	"ENV": "Environmental",
	"HLH": "Health",
	"HRI": "Human Rights",
	"LAB": "Labor",
	"LEG": "Legislature",
	"MED": "Media",
	"REF": "Refugees",
	"MOD": "Moderates",
	"RAD": "Radicals",
	"AMN": "Amnesty International",
	"IRC": "Red Cross",
	"GRP": "Greenpeace",
	"UNO": "United Nations",
	"PKO": "Peacekeepers",
	"UIS": "Unidentified State Actor",
	"IGO": "Intergovernmental Organization",
	"IMG": "International Militarized Group",
	"INT": "International/Transnational Generic",
	"MNC": "Multinational Corporation",
	"NGM": "Non-Governmental Movement",
	"NGO": "Non-Governmental Organization",
	"SET": "Settlers",
}

var countryNames = map[string]string{
	"AF": "Afghanistan",
	"AL": "Albania",
	"AG": "Algeria",
	"AO": "Angola",
	"AR": "Argentina",
	"AM": "Armenia",
	"AS": "Australia",
	"AU": "Austria",
	"AJ": "Azerbaijan",
	"BA": "Bahrain",
	"BG": "Bangladesh",
	"BO": "Belarus",
	"BE": "Belgium",
	"BN": "Benin",
	"BL": "Bolivia",
	"BK": "Bosnia and Herzegovina",
	"BC": "Botswana",
	"BR": "Brazil",
	"BU": "Bulgaria",
	"UV": "Burkina Faso",
	"BY": "Burundi",
	"CB": "Cambodia",
	"CM": "Cameroon",
	"CA": "Canada",
	"CT": "Central African Republic",
	"CD": "Chad",
	"CI": "Chile",
	"CH": "China",
	"CO": "Colombia",
	"CG": "Democratic Republic of the Congo",
	"CF": "Republic of the Congo",
	"CS": "Costa Rica",
	"IV": "Cote d'Ivoire",
	"HR": "Croatia",
	"CU": "Cuba",
	"CY": "Cyprus",
	"EZ": "Czech Republic",
	"DA": "Denmark",
	"DJ": "Djibouti",
	"DR": "Dominican Republic",
	"EC": "Ecuador",
	"EG": "Egypt",
	"ES": "El Salvador",
	"ER": "Eritrea",
	"EN": "Estonia",
	"ET": "Ethiopia",
	"FI": "Finland",
	"FR": "France",
	"GB": "Gabon",
	"GA": "The Gambia",
	"GG": "Georgia",
	"GM": "Germany",
	"GH": "Ghana",
	"GR": "Greece",
	"GT": "Guatemala",
	"GV": "Guinea",
	"GY": "Guyana",
	"HA": "Haiti",
	"HO": "Honduras",
	"HU": "Hungary",
	"IC": "Iceland",
	"IN": "India",
	"ID": "Indonesia",
	"IR": "Iran",
	"IZ": "Iraq",
	"EI": "Ireland",
	"IS": "Israel",
	"IT": "Italy",
	"JM": "Jamaica",
	"JA": "Japan",
	"JO": "Jordan",
	"KZ": "Kazakhstan",
	"KE": "Kenya",
	"KN": "North Korea",
	"KS": "South Korea",
	"KU": "Kuwait",
	"KG": "Kyrgyzstan",
	"LA": "Laos",
	"LG": "Latvia",
	"LE": "Lebanon",
	"LT": "Lesotho",
	"LI": "Liberia",
	"LY": "Libya",
	"LH": "Lithuania",
	"LU": "Luxembourg",
	"MK": "North Macedonia",
	"MA": "Madagascar",
	"MI": "Malawi",
	"MY": "Malaysia",
	"ML": "Mali",
	"MT": "Malta",
	"MR": "Mauritania",
	"MX": "Mexico",
	"MD": "Moldova",
	"MG": "Mongolia",
	"MJ": "Montenegro",
	"MO": "Morocco",
	"MZ": "Mozambique",
	"BM": "Myanmar",
	"WA": "Namibia",
	"NP": "Nepal",
	"NL": "Netherlands",
	"NZ": "New Zealand",
	"NU": "Nicaragua",
	"NG": "Niger",
	"NI": "Nigeria",
	"NO": "Norway",
	"MU": "Oman",
	"PK": "Pakistan",
	"PM": "Panama",
	"PP": "Papua New Guinea",
	"PA": "Paraguay",
	"PE": "Peru",
	"RP": "Philippines",
	"PL": "Poland",
	"PO": "Portugal",
	"QA": "Qatar",
	"RO": "Romania",
	"RS": "Russia",
	"RW": "Rwanda",
	"SA": "Saudi Arabia",
	"SG": "Senegal",
	"RI": "Serbia",
	"SL": "Sierra Leone",
	"SN": "Singapore",
	"LO": "Slovakia",
	"SI": "Slovenia",
	"SO": "Somalia",
	"SF": "South Africa",
	"OD": "South Sudan",
	"SP": "Spain",
	"CE": "Sri Lanka",
	"SU": "Sudan",
	"SW": "Sweden",
	"SZ": "Switzerland",
	"SY": "Syria",
	"TW": "Taiwan",
	"TI": "Tajikistan",
	"TZ": "Tanzania",
	"TH": "Thailand",
	"TO": "Togo",
	"TD": "Trinidad and Tobago",
	"TS": "Tunisia",
	"TU": "Turkey",
	"TX": "Turkmenistan",
	"UG": "Uganda",
	"UP": "Ukraine",
	"AE": "United Arab Emirates",
	"UK": "United Kingdom",
	"US": "United States",
	"UY": "Uruguay",
	"UZ": "Uzbekistan",
	"VE": "Venezuela",
	"VM": "Vietnam",
	"WE": "West Bank",
	"GZ": "Gaza Strip",
	"YM": "Yemen",
	"ZA": "Zambia",
	"ZI": "Zimbabwe",
}

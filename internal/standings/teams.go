package standings

type franchise struct {
	Tricode  string
	Nickname string
	FullName string
}

var franchises = []franchise{
	{"ATL", "Hawks", "Atlanta Hawks"},
	{"BOS", "Celtics", "Boston Celtics"},
	{"BKN", "Nets", "Brooklyn Nets"},
	{"CHA", "Hornets", "Charlotte Hornets"},
	{"CHI", "Bulls", "Chicago Bulls"},
	{"CLE", "Cavaliers", "Cleveland Cavaliers"},
	{"DAL", "Mavericks", "Dallas Mavericks"},
	{"DEN", "Nuggets", "Denver Nuggets"},
	{"DET", "Pistons", "Detroit Pistons"},
	{"GSW", "Warriors", "Golden State Warriors"},
	{"HOU", "Rockets", "Houston Rockets"},
	{"IND", "Pacers", "Indiana Pacers"},
	{"LAC", "Clippers", "LA Clippers"},
	{"LAL", "Lakers", "Los Angeles Lakers"},
	{"MEM", "Grizzlies", "Memphis Grizzlies"},
	{"MIA", "Heat", "Miami Heat"},
	{"MIL", "Bucks", "Milwaukee Bucks"},
	{"MIN", "Timberwolves", "Minnesota Timberwolves"},
	{"NOP", "Pelicans", "New Orleans Pelicans"},
	{"NYK", "Knicks", "New York Knicks"},
	{"OKC", "Thunder", "Oklahoma City Thunder"},
	{"ORL", "Magic", "Orlando Magic"},
	{"PHI", "76ers", "Philadelphia 76ers"},
	{"PHX", "Suns", "Phoenix Suns"},
	{"POR", "Trail Blazers", "Portland Trail Blazers"},
	{"SAC", "Kings", "Sacramento Kings"},
	{"SAS", "Spurs", "San Antonio Spurs"},
	{"TOR", "Raptors", "Toronto Raptors"},
	{"UTA", "Jazz", "Utah Jazz"},
	{"WAS", "Wizards", "Washington Wizards"},
}

// fullNames maps both tricodes and nicknames to display names.
var fullNames = func() map[string]string {
	m := make(map[string]string, len(franchises)*2)
	for _, f := range franchises {
		m[f.Tricode] = f.FullName
		m[f.Nickname] = f.FullName
	}
	return m
}()

// FullName resolves a short team name ("BOS" or "Celtics") to its display
// name. Unknown names are returned unchanged.
func FullName(short string) string {
	if full, ok := fullNames[short]; ok {
		return full
	}
	return short
}

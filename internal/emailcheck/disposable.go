package emailcheck

var disposableDomains = []string{
	"10minutemail.com",
	"33mail.com",
	"dispostable.com",
	"fakeinbox.com",
	"getnada.com",
	"guerrillamail.com",
	"guerrillamail.net",
	"mailcatch.com",
	"maildrop.cc",
	"mailinator.com",
	"mailnesia.com",
	"mintemail.com",
	"mohmal.com",
	"sharklasers.com",
	"spamgourmet.com",
	"temp-mail.org",
	"tempmail.com",
	"tempmailo.com",
	"throwawaymail.com",
	"trashmail.com",
	"yopmail.com",
	"yopmail.fr",
}

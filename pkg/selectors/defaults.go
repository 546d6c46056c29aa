package selectors

// Default returns the selector table for the Zoho Desk IM view (layout V3.17)
// and the Gemini web chat.
func Default() Table {
	return New(map[Key][]string{
		LoginEmail:          {"#login_id", "input#login_id", "[name='login_id']"},
		LoginPassword:       {"#password", "input#password", "[name='password']"},
		LoginSubmit:         {"#nextbtn", "button#nextbtn", "button[type='submit']"},
		LoginProblemLink:    {"#problemsignin", "div#problemsignin", "a[href*='problem']"},
		LoginAuthenticator:  {"input[value='authenticator']", "//div[contains(text(), 'Insira a OTP com base em tempo')]"},
		LoginOTP:            {"#otp", "input[name='otp']", "input[class*='otp']"},
		LoginDashboardCheck: {"button[data-id='globalSearchIcon']", "[data-id='globalSearchIcon']"},

		SectionKey("dashboard"):         {"//menuitem[contains(text(), 'Painel')]"},
		SectionKey("all_channels"):      {"//menuitem[contains(text(), 'canais')]"},
		SectionKey("my_conversations"):  {"//menuitem[contains(text(), 'Minhas')]"},
		SectionKey("unassigned"):        {"//menuitem[contains(text(), 'Atribuída')]"},
		SectionKey("blocked"):           {"//menuitem[contains(text(), 'Bloqueado')]"},
		SectionKey("closed"):            {"//menuitem[contains(text(), 'Encerrado')]"},
		SectionKey("all_conversations"): {"//menuitem[contains(text(), 'Todas')]"},
		SectionKey("bot_conversations"): {"//menuitem[contains(text(), 'Bot')]"},

		ListItems: {"div[role='region'] button[id^='7077']", "div[role='region'] button"},

		ChatContainer: {"[data-test-id='msgsList']"},
		ChatReady: {
			"[data-id^='msgBubble_']",
			"[data-test-id^='msgCont_']",
			"[data-test-id='chatLayoutMessage']",
			"[data-id^='msgtime_']",
		},
		ChatBubble:       {"div.zim99e01f504d[data-id^='msgBubble_']"},
		ChatSystemNotice: {".zima045fbd324", "[data-test-id='chatLayoutMessage']"},
		ChatAvatarImage:  {"[data-test-id='Avatar'] [data-test-id='Avatar_AvatarImg']"},
		ChatAvatarBox:    {"[data-test-id='Avatar'][data-title]"},
		ChatSystemMarkup: {".zima045fbd324", "[data-id^='msgContent_']", "[data-test-id='chatLayoutMessage']"},
		ChatDoubleTick:   {"#IM_doubleTick", "#GC_doubletick"},
		ChatTime:         {".zimee70af722c[data-title]", "[data-title][class*='zimee70af']"},
		ChatMsgTime:      {"[data-msgtime]"},
		// Content fragments, in priority order: plain text, system text, closure
		// banner, GC/bot layout, feedback, attachment header, attachment name.
		ChatText: {
			".zimf03631d94c > span.zim732f7a00a1",
			"[data-id^='msgContent_']",
			".zima045fbd324",
			"[data-test-id='chatLayoutMessage']",
			"[data-test-id='containerComponent'] .zimd14c2bce7e span",
			".zim95a432ad35",
			".zim5acc4ea294",
		},
		ChatClientName: {
			".zim4e2bf0ddf6.zim4af66c9aeb[data-title]",
			".zim0af53622fd.zim4af66c9aeb[data-title]",
			"[data-test-id^='tabListItem_'][data-a11y-focus='true'] [data-test-id='actorName']",
			"[data-test-id='actorName'][data-title]",
		},
		ChatCloseButton: {"//button[contains(text(), 'Encerrar')]"},

		PanelEmailLabel: {"label#E-mail"},
		PanelPhoneLabel: {"label#Celular"},
		PanelOwnerLabel: {"label[id*='Proprietario']"},

		ComposerEditor: {
			"[contenteditable='true'].ProseMirror.ui-rte-editor-div.ui-rte-editor",
			"div[contenteditable='true'].ProseMirror",
			"div[contenteditable='true']",
		},

		WebInput: {"rich-textarea div.ql-editor[contenteditable='true']", "div[contenteditable='true'][role='textbox']"},
		WebSend:  {"button.send-button", "button[aria-label*='Send']", "button[aria-label*='Enviar']"},
		WebCopy: {
			"copy-button button",
			"button[data-test-id='copy-button']",
			"button[aria-label*='Copy']",
			"button[aria-label*='Copiar']",
		},
		WebHistory: {"#chat-history", "infinite-scroller.chat-history"},
	})
}
